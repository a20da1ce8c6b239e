package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edlstream/internal/config"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected no config file to be found")
	}
	if cfg.Encoding.VideoCodec != "libx264" {
		t.Fatalf("default video codec = %q", cfg.Encoding.VideoCodec)
	}
	if cfg.Encoding.SegmentSeconds != 0.5 {
		t.Fatalf("default segment seconds = %v", cfg.Encoding.SegmentSeconds)
	}
	if cfg.Workflow.MaxConcurrentBuilds != 2 {
		t.Fatalf("default max concurrent builds = %d", cfg.Workflow.MaxConcurrentBuilds)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`artifact_root = "` + filepath.Join(dir, "artifacts") + `"`,
		`staging_dir = "` + filepath.Join(dir, "staging") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[encoding]",
		"frame_rate = 24",
		"gop_frames = 48",
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Encoding.FrameRate != 24 || cfg.Encoding.GOPFrames != 48 {
		t.Fatalf("encoding overrides not applied: %+v", cfg.Encoding)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format not normalized: %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsMisalignedGOP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[encoding]\nframe_rate = 30\ngop_frames = 45\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for gop_frames not divisible by frame_rate")
	}
}

func TestLoadRejectsSharedArtifactAndStagingDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	shared := filepath.Join(dir, "shared")
	content := "[paths]\nartifact_root = \"" + shared + "\"\nstaging_dir = \"" + shared + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for shared artifact/staging dir")
	}
}

func TestAPIBindEnvOverride(t *testing.T) {
	t.Setenv("EDLSTREAM_API_BIND", "127.0.0.1:9999")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("APIBind = %q, want env override", cfg.Paths.APIBind)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[encoding]") {
		t.Fatal("sample config missing encoding section")
	}
}
