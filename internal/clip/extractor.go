package clip

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"edlstream/internal/edl"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/services"
)

// Extractor re-encodes one cut of a source into a normalized clip.
type Extractor struct {
	runner  ffmpeg.Runner
	profile encodeprofile.Profile
	logger  *slog.Logger
}

// NewExtractor constructs an extractor. A nil logger disables logging.
func NewExtractor(runner ffmpeg.Runner, profile encodeprofile.Profile, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		runner:  runner,
		profile: profile,
		logger:  logging.NewComponentLogger(logger, "clip"),
	}
}

// Extract writes the normalized clip for entry to destPath. An existing
// non-empty destination is reused without invoking the transcoder, so
// re-running an interrupted build skips completed clips.
func (e *Extractor) Extract(ctx context.Context, entry edl.Entry, destPath string) error {
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		e.logger.Debug("reusing existing clip",
			logging.String("dest", destPath),
			logging.String("source", entry.SourcePath))
		return nil
	}

	if _, err := os.Stat(entry.SourcePath); err != nil {
		return services.Wrap(services.ErrValidation, "clip", "extract",
			fmt.Sprintf("source not readable: %s", entry.SourcePath), err)
	}

	e.logger.Info("extracting range",
		logging.String("source", entry.SourcePath),
		logging.Float64("start", entry.Start),
		logging.Float64("end", entry.End),
		logging.String("dest", destPath))

	req := ffmpeg.Request{
		Args:      e.profile.ExtractArgs(entry.SourcePath, entry.Start, entry.End, destPath),
		Timeout:   e.profile.ExtractTimeout,
		Operation: "extract",
	}
	if err := e.runner.Run(ctx, req); err != nil {
		// Remove the partial clip so the idempotent skip cannot reuse it.
		_ = os.Remove(destPath)
		return err
	}

	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrIntegrity, "clip", "extract",
			fmt.Sprintf("transcoder reported success but %s is missing or empty", destPath), err)
	}
	return nil
}
