package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"edlstream/internal/artifacts"
	"edlstream/internal/buildqueue"
	"edlstream/internal/logging"
	"edlstream/internal/metrics"
)

// Server serves the operational HTTP surface.
type Server struct {
	jobs    *buildqueue.Store
	cache   *artifacts.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	httpSrv *http.Server
}

// NewServer constructs the server bound to addr. A nil logger disables
// logging.
func NewServer(addr string, jobs *buildqueue.Store, cache *artifacts.Store, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	server := &Server{
		jobs:    jobs,
		cache:   cache,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
	server.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler(s.refreshQueueGauges))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{key}", s.handleGetJob)
		r.Get("/builds/{hash}", s.handleBuildStatus)
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", logging.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) refreshQueueGauges() {
	if s.metrics == nil || s.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	health, err := s.jobs.Health(ctx)
	if err != nil {
		s.logger.Warn("queue gauge refresh failed", logging.Error(err))
		return
	}
	s.metrics.SetQueueDepth(health.Pending, health.Building)
}

type healthResponse struct {
	Status string                   `json:"status"`
	Queue  buildqueue.HealthSummary `json:"queue"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.jobs.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Queue: health})
}

type jobResponse struct {
	Key        string     `json:"key"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	EDLHash    string     `json:"edl_hash,omitempty"`
	EditID     string     `json:"edit_id,omitempty"`
	OutputPath string     `json:"output_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func toJobResponse(job *buildqueue.Job) jobResponse {
	return jobResponse{
		Key:        job.JobKey,
		Kind:       string(job.Kind),
		Status:     string(job.Status),
		EDLHash:    job.EDLHash,
		EditID:     job.EditID,
		OutputPath: job.OutputPath,
		Error:      job.ErrorMessage,
		Attempts:   job.Attempts,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []buildqueue.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := buildqueue.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.jobs.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "list jobs failed")
		return
	}
	responses := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}
	s.writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "get job failed")
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	record, err := s.cache.Status(chi.URLParam(r, "hash"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read build status failed")
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
