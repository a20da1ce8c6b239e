package testsupport

import (
	"path/filepath"
	"testing"

	"edlstream/internal/config"
)

// NewConfig returns a validated configuration rooted in a temp directory.
// Poll and retry intervals are zeroed so workflow tests run fast.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ArtifactRoot = filepath.Join(base, "artifacts")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.ErrorRetryInterval = 0
	cfg.Workflow.MaxConcurrentBuilds = 2
	cfg.Workflow.LeaseTimeout = 2

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}
