package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoding()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ArtifactRoot) == "" {
		c.Paths.ArtifactRoot = defaultArtifactRoot
	}
	if c.Paths.ArtifactRoot, err = expandPath(c.Paths.ArtifactRoot); err != nil {
		return fmt.Errorf("paths.artifact_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if bind := strings.TrimSpace(os.Getenv("EDLSTREAM_API_BIND")); bind != "" {
		c.Paths.APIBind = bind
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeEncoding() {
	enc := &c.Encoding
	if strings.TrimSpace(enc.VideoCodec) == "" {
		enc.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(enc.VideoProfile) == "" {
		enc.VideoProfile = defaultVideoProfile
	}
	if strings.TrimSpace(enc.VideoLevel) == "" {
		enc.VideoLevel = defaultVideoLevel
	}
	if strings.TrimSpace(enc.PixelFormat) == "" {
		enc.PixelFormat = defaultPixelFormat
	}
	if enc.FrameRate <= 0 {
		enc.FrameRate = defaultFrameRate
	}
	if enc.GOPFrames <= 0 {
		enc.GOPFrames = defaultGOPFrames
	}
	if enc.SegmentSeconds <= 0 {
		enc.SegmentSeconds = defaultSegmentSeconds
	}
	if strings.TrimSpace(enc.AudioCodec) == "" {
		enc.AudioCodec = defaultAudioCodec
	}
	if enc.AudioRate <= 0 {
		enc.AudioRate = defaultAudioRate
	}
	if enc.AudioChannels <= 0 {
		enc.AudioChannels = defaultAudioChannels
	}
	if strings.TrimSpace(enc.AudioBitrate) == "" {
		enc.AudioBitrate = defaultAudioBitrate
	}
	if enc.ExtractTimeout <= 0 {
		enc.ExtractTimeout = defaultExtractTimeout
	}
	if enc.SegmentTimeout <= 0 {
		enc.SegmentTimeout = defaultSegmentTimeout
	}
	if enc.BuilderVersion <= 0 {
		enc.BuilderVersion = defaultBuilderVersion
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.MaxConcurrentBuilds <= 0 {
		c.Workflow.MaxConcurrentBuilds = defaultMaxConcurrentBuilds
	}
	if c.Workflow.LeaseTimeout <= 0 {
		c.Workflow.LeaseTimeout = defaultLeaseTimeout
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
