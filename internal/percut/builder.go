package percut

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"edlstream/internal/edl"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/services"
)

// VersionFileName records the builder version for a whole edit directory.
// A version mismatch invalidates every cached decision at once.
const VersionFileName = "version.txt"

// PlaylistName is the assembled VOD playlist inside a segments directory.
const PlaylistName = "playlist.m3u8"

// Decision is one cut within an edit, identified independently of its
// position in the edit.
type Decision struct {
	ID         string
	SourcePath string
	Start      float64
	End        float64
}

// Duration returns the decision length in seconds.
func (d Decision) Duration() float64 {
	return d.End - d.Start
}

func (d Decision) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return services.Wrap(services.ErrValidation, "percut", "validate", "decision without id", nil)
	}
	if !validIdentifier(d.ID) {
		return services.Wrap(services.ErrValidation, "percut", "validate",
			fmt.Sprintf("decision id %q contains unsupported characters", d.ID), nil)
	}
	if strings.TrimSpace(d.SourcePath) == "" {
		return services.Wrap(services.ErrValidation, "percut", "validate",
			fmt.Sprintf("decision %s: empty source path", d.ID), nil)
	}
	if d.Start < 0 || d.End-d.Start < edl.MinRangeSeconds {
		return services.Wrap(services.ErrValidation, "percut", "validate",
			fmt.Sprintf("decision %s: invalid range %.3f..%.3f", d.ID, d.Start, d.End), nil)
	}
	return nil
}

// validIdentifier reports whether an edit or decision id is safe to join
// into a filesystem path. Ids become directory and file names, so path
// separators and dot names must never pass.
func validIdentifier(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// contentKey addresses the decision's artifacts. Boundary changes beyond
// 1ms and builder version bumps change the key; reordering does not.
func (d Decision) contentKey(version int) string {
	digest := sha1.New()
	fmt.Fprintf(digest, "%s|%.3f|%.3f|%d", d.ID, d.Start, d.End, version)
	return hex.EncodeToString(digest.Sum(nil))
}

// Artifact filename helpers. Filenames are decision-scoped and stable so
// the assembled playlist never has to change when a neighbor rebuilds.
func initName(id string) string     { return "dec_" + id + ".init.mp4" }
func manifestName(id string) string { return "dec_" + id + ".m3u8" }
func segmentPattern(id string) string {
	return "dec_" + id + "-%05d.m4s"
}
func segmentGlob(id string) string { return "dec_" + id + "-*.m4s" }
func keyName(id string) string     { return "dec_" + id + ".key" }

// Builder produces CMAF fragment sets for individual decisions.
type Builder struct {
	runner    ffmpeg.Runner
	profile   encodeprofile.Profile
	editsRoot string
	logger    *slog.Logger
}

// NewBuilder constructs a per-decision builder. A nil logger disables
// logging.
func NewBuilder(runner ffmpeg.Runner, profile encodeprofile.Profile, editsRoot string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		runner:    runner,
		profile:   profile,
		editsRoot: editsRoot,
		logger:    logging.NewComponentLogger(logger, "percut"),
	}
}

// EditDir returns the directory for one edit.
func (b *Builder) EditDir(editID string) string {
	return filepath.Join(b.editsRoot, editID)
}

// SegmentsDir returns the fragment directory for one edit.
func (b *Builder) SegmentsDir(editID string) string {
	return filepath.Join(b.EditDir(editID), "segments")
}

// PlaylistPath returns the assembled playlist path for one edit.
func (b *Builder) PlaylistPath(editID string) string {
	return filepath.Join(b.SegmentsDir(editID), PlaylistName)
}

// Report summarizes a BuildEdit run.
type Report struct {
	Rebuilt int
	Cached  int
}

// BuildEdit ensures every decision's fragment set exists and is current,
// then assembles the playlist. Decisions whose content key matches their
// sidecar are reused without transcoding.
func (b *Builder) BuildEdit(ctx context.Context, editID string, decisions []Decision) (Report, error) {
	var report Report
	if strings.TrimSpace(editID) == "" {
		return report, services.Wrap(services.ErrValidation, "percut", "build", "empty edit id", nil)
	}
	if !validIdentifier(editID) {
		return report, services.Wrap(services.ErrValidation, "percut", "build",
			fmt.Sprintf("edit id %q contains unsupported characters", editID), nil)
	}
	if len(decisions) == 0 {
		return report, services.Wrap(services.ErrValidation, "percut", "build", "edit has no decisions", nil)
	}
	for _, decision := range decisions {
		if err := decision.validate(); err != nil {
			return report, err
		}
	}

	segmentsDir := b.SegmentsDir(editID)
	if err := os.MkdirAll(segmentsDir, 0o755); err != nil {
		return report, services.Wrap(services.ErrTransient, "percut", "build", "create segments directory", err)
	}
	if err := b.reconcileVersion(editID); err != nil {
		return report, err
	}

	for _, decision := range decisions {
		rebuilt, err := b.buildDecision(ctx, segmentsDir, decision)
		if err != nil {
			return report, err
		}
		if rebuilt {
			report.Rebuilt++
		} else {
			report.Cached++
		}
	}

	if err := b.assemblePlaylist(editID, decisions); err != nil {
		return report, err
	}
	return report, nil
}

// reconcileVersion prunes the whole segments directory when the recorded
// builder version differs from the current one, then records the current
// version.
func (b *Builder) reconcileVersion(editID string) error {
	versionPath := filepath.Join(b.EditDir(editID), VersionFileName)
	current := strconv.Itoa(b.profile.Version)

	data, err := os.ReadFile(versionPath)
	switch {
	case err == nil:
		if strings.TrimSpace(string(data)) == current {
			return nil
		}
		b.logger.Info("builder version changed, pruning edit cache",
			logging.String(logging.FieldEditID, editID),
			logging.String("recorded", strings.TrimSpace(string(data))),
			logging.String("current", current))
		if err := os.RemoveAll(b.SegmentsDir(editID)); err != nil {
			return services.Wrap(services.ErrTransient, "percut", "build", "prune stale segments", err)
		}
		if err := os.MkdirAll(b.SegmentsDir(editID), 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "percut", "build", "recreate segments directory", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// First build for this edit.
	default:
		return services.Wrap(services.ErrTransient, "percut", "build", "read version record", err)
	}

	if err := os.WriteFile(versionPath, []byte(current+"\n"), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "percut", "build", "write version record", err)
	}
	return nil
}

func (b *Builder) buildDecision(ctx context.Context, segmentsDir string, decision Decision) (bool, error) {
	key := decision.contentKey(b.profile.Version)
	keyPath := filepath.Join(segmentsDir, keyName(decision.ID))

	if recorded, err := os.ReadFile(keyPath); err == nil && strings.TrimSpace(string(recorded)) == key {
		if err := b.verifyDecision(segmentsDir, decision.ID); err == nil {
			return false, nil
		}
		b.logger.Warn("cached decision failed verification, rebuilding",
			logging.String(logging.FieldDecisionID, decision.ID))
	}

	if _, err := os.Stat(decision.SourcePath); err != nil {
		return false, services.Wrap(services.ErrValidation, "percut", "build",
			fmt.Sprintf("decision %s: source not readable: %s", decision.ID, decision.SourcePath), err)
	}

	// A stale key must never describe fresh fragments, so drop it before
	// transcoding and rewrite it after verification.
	if err := os.Remove(keyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, services.Wrap(services.ErrTransient, "percut", "build", "remove stale content key", err)
	}

	b.logger.Info("building decision fragments",
		logging.String(logging.FieldDecisionID, decision.ID),
		logging.Float64("start", decision.Start),
		logging.Float64("end", decision.End))

	req := ffmpeg.Request{
		Args: b.profile.DecisionCmafArgs(
			decision.SourcePath,
			decision.Start,
			decision.End,
			initName(decision.ID),
			filepath.Join(segmentsDir, segmentPattern(decision.ID)),
			filepath.Join(segmentsDir, manifestName(decision.ID)),
		),
		Timeout:   b.profile.SegmentTimeout,
		Operation: "decision-cmaf",
	}
	if err := b.runner.Run(ctx, req); err != nil {
		return false, err
	}
	if err := b.verifyDecision(segmentsDir, decision.ID); err != nil {
		return false, err
	}
	if err := os.WriteFile(keyPath, []byte(key+"\n"), 0o644); err != nil {
		return false, services.Wrap(services.ErrTransient, "percut", "build", "write content key", err)
	}
	return true, nil
}

func (b *Builder) verifyDecision(segmentsDir, id string) error {
	for _, name := range []string{manifestName(id), initName(id)} {
		info, err := os.Stat(filepath.Join(segmentsDir, name))
		if err != nil || info.Size() == 0 {
			return services.Wrap(services.ErrIntegrity, "percut", "verify",
				fmt.Sprintf("%s missing or empty", name), err)
		}
	}
	matches, err := filepath.Glob(filepath.Join(segmentsDir, segmentGlob(id)))
	if err != nil {
		return services.Wrap(services.ErrIntegrity, "percut", "verify", "scan fragments", err)
	}
	for _, match := range matches {
		if info, statErr := os.Stat(match); statErr == nil && info.Size() > 0 {
			return nil
		}
	}
	return services.Wrap(services.ErrIntegrity, "percut", "verify",
		fmt.Sprintf("decision %s has no non-empty fragments", id), nil)
}

func (b *Builder) assemblePlaylist(editID string, decisions []Decision) error {
	groups := make([]DecisionGroup, 0, len(decisions))
	segmentsDir := b.SegmentsDir(editID)
	for _, decision := range decisions {
		fragments, err := parseFragmentManifest(filepath.Join(segmentsDir, manifestName(decision.ID)))
		if err != nil {
			return err
		}
		groups = append(groups, DecisionGroup{
			InitURI:   initName(decision.ID),
			Fragments: fragments,
		})
	}
	playlist := AssemblePlaylist(groups)
	if err := os.WriteFile(b.PlaylistPath(editID), []byte(playlist), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "percut", "assemble", "write playlist", err)
	}
	return nil
}
