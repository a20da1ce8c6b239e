// Package metrics exposes Prometheus instrumentation for the build daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for build activity.
type Metrics struct {
	registry       *prometheus.Registry
	buildsTotal    *prometheus.CounterVec
	buildSeconds   prometheus.Histogram
	cacheHitsTotal prometheus.Counter
	jobsPending    prometheus.Gauge
	jobsBuilding   prometheus.Gauge
}

// New creates and registers the daemon's Prometheus collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	buildsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edlstream_builds_total",
		Help: "Completed build jobs by kind and terminal status",
	}, []string{"kind", "status"})
	buildSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edlstream_build_duration_seconds",
		Help:    "Wall time spent executing build jobs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	cacheHitsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edlstream_cache_hits_total",
		Help: "Unified build requests satisfied without transcoding",
	})
	jobsPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edlstream_jobs_pending",
		Help: "Jobs waiting in the build queue",
	})
	jobsBuilding := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edlstream_jobs_building",
		Help: "Jobs currently executing",
	})

	registry.MustRegister(buildsTotal, buildSeconds, cacheHitsTotal, jobsPending, jobsBuilding)

	return &Metrics{
		registry:       registry,
		buildsTotal:    buildsTotal,
		buildSeconds:   buildSeconds,
		cacheHitsTotal: cacheHitsTotal,
		jobsPending:    jobsPending,
		jobsBuilding:   jobsBuilding,
	}
}

// ObserveBuild records one finished job.
func (m *Metrics) ObserveBuild(kind, status string, elapsed time.Duration) {
	m.buildsTotal.WithLabelValues(kind, status).Inc()
	m.buildSeconds.Observe(elapsed.Seconds())
}

// IncCacheHits increments the unified cache hit counter.
func (m *Metrics) IncCacheHits() {
	m.cacheHitsTotal.Inc()
}

// SetQueueDepth updates the queue gauges.
func (m *Metrics) SetQueueDepth(pending, building int) {
	m.jobsPending.Set(float64(pending))
	m.jobsBuilding.Set(float64(building))
}

// Handler returns an http.Handler that serves the registry. updateGauges is
// called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
