package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"edlstream/internal/buildqueue"
	"edlstream/internal/config"
	"edlstream/internal/logging"
	"edlstream/internal/metrics"
	"edlstream/internal/services"
)

// Manager polls the build queue and executes claimed jobs in a bounded
// worker pool.
type Manager struct {
	cfg           *config.Config
	store         *buildqueue.Store
	executor      Executor
	logger        *slog.Logger
	metrics       *metrics.Metrics
	pollInterval  time.Duration
	retryInterval time.Duration
	workers       int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithMetrics enables Prometheus instrumentation for finished jobs.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *buildqueue.Store, executor Executor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.MaxConcurrentBuilds
	if workers < 1 {
		workers = 1
	}
	mgr := &Manager{
		cfg:           cfg,
		store:         store,
		executor:      executor,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		workers:       workers,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Start begins background processing. Jobs left in building by a previous
// process are reset to pending first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	if reset, err := m.store.ResetStuckBuilding(ctx); err != nil {
		m.logger.Warn("reset of stuck jobs failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check job database access"))
	} else if reset > 0 {
		m.logger.Info("reset stuck jobs to pending", logging.Int64("count", reset))
	}

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing, waits for in-flight builds, and
// fails anything still marked building.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	ctx, cancelCleanup := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCleanup()
	if failed, err := m.store.FailBuilding(ctx, buildqueue.DaemonStopReason); err != nil {
		m.logger.Warn("failing in-flight jobs on shutdown failed", logging.Error(err))
	} else if failed > 0 {
		m.logger.Info("failed in-flight jobs on shutdown", logging.Int64("count", failed))
	}
}

// LastError returns the most recent queue access error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	sem := make(chan struct{}, m.workers)
	var jobs sync.WaitGroup
	defer jobs.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			m.logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"))
			if !sleepCtx(ctx, m.retryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		jobs.Add(1)
		go func(job *buildqueue.Job) {
			defer jobs.Done()
			defer func() { <-sem }()
			m.runJob(ctx, job)
		}(job)
	}
}

func (m *Manager) runJob(ctx context.Context, job *buildqueue.Job) {
	logger := m.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldBuildKind, string(job.Kind)))
	logger.Info("job started")
	started := time.Now()

	outputPath, err := m.executor.Execute(ctx, job)
	elapsed := time.Since(started)

	// Persist terminal status with a fresh context so shutdown does not
	// lose the outcome of a finished build.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Left in building; Stop fails these with DaemonStopReason.
			logger.Info("job canceled")
			return
		}
		if persistErr := m.store.MarkFailed(persistCtx, job.ID, services.Diagnostic(err)); persistErr != nil {
			logger.Error("persisting job failure failed", logging.Error(persistErr))
		}
		if m.metrics != nil {
			m.metrics.ObserveBuild(string(job.Kind), string(buildqueue.StatusFailed), elapsed)
		}
		logger.Error("job failed", logging.Error(err), logging.Duration("elapsed", elapsed))
		return
	}

	if persistErr := m.store.MarkReady(persistCtx, job.ID, outputPath); persistErr != nil {
		logger.Error("persisting job success failed", logging.Error(persistErr))
		return
	}
	if m.metrics != nil {
		m.metrics.ObserveBuild(string(job.Kind), string(buildqueue.StatusReady), elapsed)
	}
	logger.Info("job ready",
		logging.String("output", outputPath),
		logging.Duration("elapsed", elapsed))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
