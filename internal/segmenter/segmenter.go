package segmenter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"edlstream/internal/encodeprofile"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/services"
)

// Artifact names inside a unified build directory. Serving layers rely on
// these staying stable and relative.
const (
	ManifestName   = "manifest.m3u8"
	InitName       = "init.mp4"
	SegmentPattern = "seg-%05d.m4s"
	segmentGlob    = "seg-*.m4s"
)

// Segmenter concatenates normalized clips into an fMP4 segment set without
// re-encoding.
type Segmenter struct {
	runner  ffmpeg.Runner
	profile encodeprofile.Profile
	logger  *slog.Logger
}

// New constructs a segmenter. A nil logger disables logging.
func New(runner ffmpeg.Runner, profile encodeprofile.Profile, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Segmenter{
		runner:  runner,
		profile: profile,
		logger:  logging.NewComponentLogger(logger, "segmenter"),
	}
}

// Segment concatenates clipPaths in order into destDir. The concat list is
// written under workDir and left in place for diagnosis on failure.
func (s *Segmenter) Segment(ctx context.Context, clipPaths []string, workDir, destDir string) error {
	if len(clipPaths) == 0 {
		return services.Wrap(services.ErrValidation, "segmenter", "segment", "no clips to concatenate", nil)
	}
	for _, clipPath := range clipPaths {
		info, err := os.Stat(clipPath)
		if err != nil || info.Size() == 0 {
			return services.Wrap(services.ErrValidation, "segmenter", "segment",
				fmt.Sprintf("clip missing or empty: %s", clipPath), err)
		}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "segmenter", "segment", "create artifact directory", err)
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := WriteConcatList(listPath, clipPaths); err != nil {
		return err
	}

	s.logger.Info("segmenting concatenated clips",
		logging.Int("clips", len(clipPaths)),
		logging.String("dest", destDir))

	req := ffmpeg.Request{
		Args: s.profile.ConcatSegmentArgs(
			listPath,
			InitName,
			filepath.Join(destDir, SegmentPattern),
			filepath.Join(destDir, ManifestName),
		),
		Timeout:   s.profile.SegmentTimeout,
		Operation: "segment",
	}
	if err := s.runner.Run(ctx, req); err != nil {
		return err
	}

	return VerifyArtifacts(destDir)
}

// WriteConcatList writes clip paths in concat demuxer format. Single quotes
// in paths are escaped per the demuxer's quoting rules.
func WriteConcatList(path string, clipPaths []string) error {
	var builder strings.Builder
	for _, clipPath := range clipPaths {
		escaped := strings.ReplaceAll(clipPath, "'", `'\''`)
		fmt.Fprintf(&builder, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "segmenter", "segment", "write concat list", err)
	}
	return nil
}

// VerifyArtifacts checks that a segment directory holds a non-empty
// manifest, init segment, and at least one media segment. A build is never
// reported ready without passing this check.
func VerifyArtifacts(dir string) error {
	for _, name := range []string{ManifestName, InitName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil || info.Size() == 0 {
			return services.Wrap(services.ErrIntegrity, "segmenter", "verify",
				fmt.Sprintf("%s missing or empty", name), err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return services.Wrap(services.ErrIntegrity, "segmenter", "verify", "scan media segments", err)
	}
	for _, match := range matches {
		if info, statErr := os.Stat(match); statErr == nil && info.Size() > 0 {
			return nil
		}
	}
	return services.Wrap(services.ErrIntegrity, "segmenter", "verify", "no non-empty media segments", nil)
}
