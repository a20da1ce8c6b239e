package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"edlstream/internal/buildqueue"
	"edlstream/internal/edl"
	"edlstream/internal/metrics"
	"edlstream/internal/percut"
	"edlstream/internal/render"
	"edlstream/internal/services"
	"edlstream/internal/unified"
)

// Executor runs one claimed job to its terminal state. The returned output
// path is recorded on the job when the build succeeds.
type Executor interface {
	Execute(ctx context.Context, job *buildqueue.Job) (string, error)
}

// PlaylistPayload is the cuts_json schema for playlist jobs.
type PlaylistPayload struct {
	Decisions []percut.Decision `json:"decisions"`
}

// BuildExecutor dispatches jobs to the concrete builders.
type BuildExecutor struct {
	unified  *unified.Builder
	percut   *percut.Builder
	renderer *render.Renderer
	metrics  *metrics.Metrics
}

// ExecutorOption configures optional BuildExecutor behavior.
type ExecutorOption func(*BuildExecutor)

// WithExecutorMetrics counts unified cache hits on the given collectors.
func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *BuildExecutor) {
		e.metrics = m
	}
}

// NewBuildExecutor constructs the production executor.
func NewBuildExecutor(unifiedBuilder *unified.Builder, percutBuilder *percut.Builder, renderer *render.Renderer, opts ...ExecutorOption) *BuildExecutor {
	executor := &BuildExecutor{
		unified:  unifiedBuilder,
		percut:   percutBuilder,
		renderer: renderer,
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Execute runs the build for job.Kind.
func (e *BuildExecutor) Execute(ctx context.Context, job *buildqueue.Job) (string, error) {
	switch job.Kind {
	case buildqueue.KindUnified:
		list, err := decodeList(job.CutsJSON)
		if err != nil {
			return "", err
		}
		result, err := e.unified.Build(ctx, list)
		if err != nil {
			return "", err
		}
		if result.CacheHit && e.metrics != nil {
			e.metrics.IncCacheHits()
		}
		return result.Manifest, nil

	case buildqueue.KindPlaylist:
		var payload PlaylistPayload
		if err := json.Unmarshal([]byte(job.CutsJSON), &payload); err != nil {
			return "", services.Wrap(services.ErrValidation, "workflow", "execute", "parse playlist payload", err)
		}
		if _, err := e.percut.BuildEdit(ctx, job.EditID, payload.Decisions); err != nil {
			return "", err
		}
		return e.percut.PlaylistPath(job.EditID), nil

	case buildqueue.KindExport:
		list, err := decodeList(job.CutsJSON)
		if err != nil {
			return "", err
		}
		if job.OutputPath == "" {
			return "", services.Wrap(services.ErrValidation, "workflow", "execute", "export job without output path", nil)
		}
		if err := e.renderer.Render(ctx, list, job.OutputPath); err != nil {
			return "", err
		}
		return job.OutputPath, nil

	default:
		return "", services.Wrap(services.ErrValidation, "workflow", "execute",
			fmt.Sprintf("unknown job kind %q", job.Kind), nil)
	}
}

func decodeList(cutsJSON string) (edl.List, error) {
	var list edl.List
	if err := json.Unmarshal([]byte(cutsJSON), &list); err != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "execute", "parse cuts payload", err)
	}
	return list, nil
}
