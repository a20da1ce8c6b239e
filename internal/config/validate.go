package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ArtifactRoot == "" {
		return errors.New("paths.artifact_root must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.ArtifactRoot == c.Paths.StagingDir {
		return errors.New("paths.artifact_root and paths.staging_dir must differ")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	enc := c.Encoding
	if enc.FrameRate <= 0 {
		return errors.New("encoding.frame_rate must be positive")
	}
	if enc.GOPFrames <= 0 {
		return errors.New("encoding.gop_frames must be positive")
	}
	if enc.GOPFrames%enc.FrameRate != 0 {
		return fmt.Errorf("encoding.gop_frames (%d) must be a whole multiple of encoding.frame_rate (%d) so segment boundaries land on keyframes", enc.GOPFrames, enc.FrameRate)
	}
	if enc.SegmentSeconds <= 0 || enc.SegmentSeconds > 10 {
		return errors.New("encoding.segment_seconds must be in (0, 10]")
	}
	if enc.AudioChannels <= 0 || enc.AudioChannels > 8 {
		return errors.New("encoding.audio_channels must be in [1, 8]")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxConcurrentBuilds > 32 {
		return errors.New("workflow.max_concurrent_builds must not exceed 32")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
