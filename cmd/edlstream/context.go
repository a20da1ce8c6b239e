package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"edlstream/internal/artifacts"
	"edlstream/internal/buildqueue"
	"edlstream/internal/clip"
	"edlstream/internal/config"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/percut"
	"edlstream/internal/render"
	"edlstream/internal/segmenter"
	"edlstream/internal/unified"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) openQueue() (*buildqueue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return buildqueue.Open(cfg)
}

func (c *commandContext) artifactStore() (*artifacts.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return artifacts.NewStore(
		cfg.UnifiedRoot(),
		time.Duration(cfg.Workflow.LeaseTimeout)*time.Second,
		c.logger(),
	), nil
}

// unifiedBuilder assembles the synchronous build path with the real
// transcoder binary.
func (c *commandContext) unifiedBuilder() (*unified.Builder, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := c.artifactStore()
	if err != nil {
		return nil, err
	}
	logger := c.logger()
	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	profile := encodeprofile.FromConfig(cfg.Encoding)
	return unified.NewBuilder(
		store,
		clip.NewExtractor(runner, profile, logger),
		segmenter.New(runner, profile, logger),
		cfg.Paths.StagingDir,
		logger,
		unified.WithSourceProbing(cfg.FFprobeBinary()),
	), nil
}

func (c *commandContext) percutBuilder() (*percut.Builder, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	return percut.NewBuilder(runner, encodeprofile.FromConfig(cfg.Encoding), cfg.EditsRoot(), c.logger()), nil
}

func (c *commandContext) renderer() (*render.Renderer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	return render.New(runner, encodeprofile.FromConfig(cfg.Encoding), cfg.Paths.StagingDir, c.logger()), nil
}
