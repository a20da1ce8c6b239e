package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ArtifactRoot string `toml:"artifact_root"`
	StagingDir   string `toml:"staging_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Encoding contains the normalization parameters shared by every builder.
// One profile feeds extraction, concat segmentation, and per-decision CMAF
// so the builders cannot drift apart.
type Encoding struct {
	VideoCodec     string  `toml:"video_codec"`
	VideoProfile   string  `toml:"video_profile"`
	VideoLevel     string  `toml:"video_level"`
	PixelFormat    string  `toml:"pixel_format"`
	FrameRate      int     `toml:"frame_rate"`
	GOPFrames      int     `toml:"gop_frames"`
	SegmentSeconds float64 `toml:"segment_seconds"`
	AudioCodec     string  `toml:"audio_codec"`
	AudioRate      int     `toml:"audio_rate"`
	AudioChannels  int     `toml:"audio_channels"`
	AudioBitrate   string  `toml:"audio_bitrate"`
	// ExtractTimeout and SegmentTimeout bound individual transcoder runs, in seconds.
	ExtractTimeout int `toml:"extract_timeout"`
	SegmentTimeout int `toml:"segment_timeout"`
	// BuilderVersion invalidates per-decision caches when encoding parameters change.
	BuilderVersion int `toml:"builder_version"`
}

// Workflow contains daemon timing and worker pool configuration.
type Workflow struct {
	QueuePollInterval   int `toml:"queue_poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	MaxConcurrentBuilds int `toml:"max_concurrent_builds"`
	// LeaseTimeout is the advisory build lease expiry, in seconds.
	LeaseTimeout int `toml:"lease_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for edlstream.
//
// Configuration sections by subsystem:
//   - Paths: artifact root, staging directory, log directory, API bind address
//   - Encoding: the shared normalize-and-segment transcoder profile
//   - Workflow: daemon polling intervals and encode concurrency
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Encoding Encoding `toml:"encoding"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/edlstream/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("edlstream.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArtifactRoot, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// UnifiedRoot returns the directory holding content-addressed unified builds.
func (c *Config) UnifiedRoot() string {
	return filepath.Join(c.Paths.ArtifactRoot, "unified")
}

// EditsRoot returns the directory holding per-edit decision artifacts.
func (c *Config) EditsRoot() string {
	return filepath.Join(c.Paths.ArtifactRoot, "edits")
}

// FFmpegBinary returns the ffmpeg executable name used for extraction and segmentation.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for source inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
