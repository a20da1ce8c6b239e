package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"edlstream/internal/api"
	"edlstream/internal/artifacts"
	"edlstream/internal/buildqueue"
	"edlstream/internal/clip"
	"edlstream/internal/config"
	"edlstream/internal/encodeprofile"
	"edlstream/internal/logging"
	"edlstream/internal/media/ffmpeg"
	"edlstream/internal/metrics"
	"edlstream/internal/percut"
	"edlstream/internal/render"
	"edlstream/internal/segmenter"
	"edlstream/internal/unified"
	"edlstream/internal/workflow"
)

// LockFileName guards against concurrent daemon instances sharing one
// artifact root.
const LockFileName = "edlstreamd.lock"

// Daemon is the assembled build service.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	store   *buildqueue.Store
	manager *workflow.Manager
	server  *api.Server
}

// New assembles a daemon. It fails when another instance already holds the
// lock for this configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, LockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !acquired {
		return nil, errors.New("another edlstreamd instance is already running")
	}

	store, err := buildqueue.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	runner := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	profile := encodeprofile.FromConfig(cfg.Encoding)
	leaseTimeout := time.Duration(cfg.Workflow.LeaseTimeout) * time.Second

	cache := artifacts.NewStore(cfg.UnifiedRoot(), leaseTimeout, logger)
	unifiedBuilder := unified.NewBuilder(
		cache,
		clip.NewExtractor(runner, profile, logger),
		segmenter.New(runner, profile, logger),
		cfg.Paths.StagingDir,
		logger,
		unified.WithSourceProbing(cfg.FFprobeBinary()),
	)
	percutBuilder := percut.NewBuilder(runner, profile, cfg.EditsRoot(), logger)
	renderer := render.New(runner, profile, cfg.Paths.StagingDir, logger)

	m := metrics.New()
	executor := workflow.NewBuildExecutor(unifiedBuilder, percutBuilder, renderer, workflow.WithExecutorMetrics(m))
	manager := workflow.NewManager(cfg, store, executor, logger, workflow.WithMetrics(m))
	server := api.NewServer(cfg.Paths.APIBind, store, cache, m, logger)

	return &Daemon{
		cfg:     cfg,
		logger:  logger,
		lock:    lock,
		store:   store,
		manager: manager,
		server:  server,
	}, nil
}

// Run starts the workflow and HTTP surface and blocks until ctx is done or
// the server fails.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon starting",
		logging.String("artifact_root", d.cfg.Paths.ArtifactRoot),
		logging.String("api_bind", d.cfg.Paths.APIBind))

	if err := d.manager.Start(ctx); err != nil {
		return err
	}
	defer d.manager.Stop()

	if err := d.server.Start(ctx); err != nil {
		return err
	}
	d.logger.Info("daemon stopped")
	return nil
}

// Close releases the daemon's resources.
func (d *Daemon) Close() error {
	var firstErr error
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			firstErr = err
		}
	}
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
