package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"edlstream/internal/clip"
	"edlstream/internal/edl"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/segmenter"
	"edlstream/internal/services"
)

// Renderer flattens an edit decision list into one re-encoded file.
type Renderer struct {
	runner      ffmpeg.Runner
	profile     encodeprofile.Profile
	extractor   *clip.Extractor
	stagingRoot string
	logger      *slog.Logger
}

// New constructs a renderer. A nil logger disables logging.
func New(runner ffmpeg.Runner, profile encodeprofile.Profile, stagingRoot string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Renderer{
		runner:      runner,
		profile:     profile,
		extractor:   clip.NewExtractor(runner, profile, logger),
		stagingRoot: stagingRoot,
		logger:      logging.NewComponentLogger(logger, "render"),
	}
}

// Render writes the flattened export to destPath. Intermediate clips live
// in a scoped temp directory that is removed on every exit path, success
// or failure.
func (r *Renderer) Render(ctx context.Context, list edl.List, destPath string) error {
	if err := list.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.stagingRoot, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "render", "render", "create staging root", err)
	}
	tempDir, err := os.MkdirTemp(r.stagingRoot, "render-")
	if err != nil {
		return services.Wrap(services.ErrTransient, "render", "render", "create temp directory", err)
	}
	defer os.RemoveAll(tempDir)

	r.logger.Info("rendering flat export",
		logging.Int("cuts", len(list)),
		logging.String("dest", destPath))

	clipPaths := make([]string, 0, len(list))
	for i, entry := range list {
		clipPath := filepath.Join(tempDir, fmt.Sprintf("clip_%03d.mp4", i))
		if err := r.extractor.Extract(ctx, entry, clipPath); err != nil {
			return err
		}
		clipPaths = append(clipPaths, clipPath)
	}

	listPath := filepath.Join(tempDir, "concat.txt")
	if err := segmenter.WriteConcatList(listPath, clipPaths); err != nil {
		return err
	}

	if dir := filepath.Dir(destPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "render", "render", "create export directory", err)
		}
	}
	req := ffmpeg.Request{
		Args:      r.profile.ExportConcatArgs(listPath, destPath),
		Timeout:   r.profile.SegmentTimeout,
		Operation: "export",
	}
	if err := r.runner.Run(ctx, req); err != nil {
		_ = os.Remove(destPath)
		return err
	}

	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrIntegrity, "render", "render",
			fmt.Sprintf("export missing or empty: %s", destPath), err)
	}
	return nil
}
