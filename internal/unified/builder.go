package unified

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"edlstream/internal/artifacts"
	"edlstream/internal/clip"
	"edlstream/internal/edl"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffprobe"
	"edlstream/internal/segmenter"
	"edlstream/internal/services"
)

// Result describes the outcome of a build request.
type Result struct {
	Hash     string
	Dir      string
	Manifest string
	Status   artifacts.Status
	// CacheHit reports that a verified artifact already existed and no
	// subprocess work was performed.
	CacheHit bool
}

// Builder assembles unified streams from edit decision lists.
type Builder struct {
	store        *artifacts.Store
	extractor    *clip.Extractor
	segmenter    *segmenter.Segmenter
	stagingRoot  string
	probeBinary  string
	probeSources bool
	logger       *slog.Logger
}

// Option configures the builder.
type Option func(*Builder)

// WithSourceProbing enables best-effort ffprobe duration validation of
// sources before extraction starts.
func WithSourceProbing(binary string) Option {
	return func(b *Builder) {
		b.probeBinary = binary
		b.probeSources = true
	}
}

// NewBuilder constructs a unified stream builder. A nil logger disables
// logging.
func NewBuilder(store *artifacts.Store, extractor *clip.Extractor, seg *segmenter.Segmenter, stagingRoot string, logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Builder{
		store:       store,
		extractor:   extractor,
		segmenter:   seg,
		stagingRoot: stagingRoot,
		logger:      logging.NewComponentLogger(logger, "unified"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the unified artifact for list, or reuses it when the same
// content was built before. Concurrent requests for the same hash coalesce:
// the lease holder builds while others observe the building status.
func (b *Builder) Build(ctx context.Context, list edl.List) (Result, error) {
	if err := list.Validate(); err != nil {
		return Result{}, err
	}
	hash := list.Hash()
	result := Result{
		Hash:     hash,
		Dir:      b.store.Dir(hash),
		Manifest: b.store.ManifestPath(hash),
	}

	record, err := b.store.Status(hash)
	if err != nil {
		return Result{}, err
	}
	if record.Status == artifacts.StatusReady {
		b.logger.Info("unified build cache hit", logging.String(logging.FieldEDLHash, hash))
		result.Status = artifacts.StatusReady
		result.CacheHit = true
		return result, nil
	}

	lease, acquired, err := b.store.TryLease(hash)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		// Another process holds the build lease. Report what it persisted.
		record, err := b.store.Status(hash)
		if err != nil {
			return Result{}, err
		}
		result.Status = record.Status
		if result.Status == artifacts.StatusMissing {
			result.Status = artifacts.StatusBuilding
		}
		return result, nil
	}
	defer lease.Release()

	// The previous holder may have finished between our status read and
	// lease acquisition.
	record, err = b.store.Status(hash)
	if err != nil {
		return Result{}, err
	}
	if record.Status == artifacts.StatusReady {
		result.Status = artifacts.StatusReady
		result.CacheHit = true
		return result, nil
	}

	if err := b.store.MarkBuilding(hash); err != nil {
		return Result{}, err
	}
	if err := b.runBuild(ctx, hash, list); err != nil {
		if persistErr := b.store.MarkFailed(hash, services.Diagnostic(err)); persistErr != nil {
			return Result{}, fmt.Errorf("persist failure status: %w (build error: %s)", persistErr, err)
		}
		result.Status = artifacts.StatusFailed
		return result, err
	}

	if err := b.store.MarkReady(hash); err != nil {
		return Result{}, err
	}
	result.Status = artifacts.StatusReady
	return result, nil
}

// Status reports the persisted build status for list without building.
func (b *Builder) Status(list edl.List) (Result, error) {
	if err := list.Validate(); err != nil {
		return Result{}, err
	}
	hash := list.Hash()
	record, err := b.store.Status(hash)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Hash:     hash,
		Dir:      b.store.Dir(hash),
		Manifest: b.store.ManifestPath(hash),
		Status:   record.Status,
		CacheHit: record.Status == artifacts.StatusReady,
	}, nil
}

func (b *Builder) runBuild(ctx context.Context, hash string, list edl.List) error {
	if b.probeSources {
		if err := b.validateSourceDurations(ctx, list); err != nil {
			return err
		}
	}

	stagingDir := filepath.Join(b.stagingRoot, hash)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "unified", "build", "create staging directory", err)
	}

	clipPaths := make([]string, 0, len(list))
	for i, entry := range list {
		clipPath := filepath.Join(stagingDir, fmt.Sprintf("clip_%03d.mp4", i))
		if err := b.extractor.Extract(ctx, entry, clipPath); err != nil {
			return err
		}
		clipPaths = append(clipPaths, clipPath)
	}

	if err := b.segmenter.Segment(ctx, clipPaths, stagingDir, b.store.Dir(hash)); err != nil {
		return err
	}

	// Staging clips are only needed for resuming an interrupted build.
	if err := os.RemoveAll(stagingDir); err != nil {
		b.logger.Warn("staging cleanup failed",
			logging.String(logging.FieldEDLHash, hash),
			logging.Error(err))
	}
	return nil
}

// validateSourceDurations probes each distinct source once and rejects cuts
// extending past a known duration. Probe failures are tolerated; the
// transcoder will surface unreadable sources on its own.
func (b *Builder) validateSourceDurations(ctx context.Context, list edl.List) error {
	durations := make(map[string]float64)
	for _, path := range list.SourcePaths() {
		probed, err := ffprobe.Inspect(ctx, b.probeBinary, path)
		if err != nil {
			b.logger.Debug("source probe failed", logging.String("source", path), logging.Error(err))
			continue
		}
		if d := probed.DurationSeconds(); d > 0 {
			durations[path] = d
		}
	}
	return list.ValidateDurations(durations)
}
