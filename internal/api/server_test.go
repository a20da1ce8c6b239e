package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edlstream/internal/artifacts"
	"edlstream/internal/buildqueue"
	"edlstream/internal/metrics"
	"edlstream/internal/testsupport"
)

func newTestServer(t *testing.T) (*Server, *buildqueue.Store, *artifacts.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	jobs, err := buildqueue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { jobs.Close() })
	cache := artifacts.NewStore(cfg.UnifiedRoot(), time.Second, nil)
	return NewServer(cfg.Paths.APIBind, jobs, cache, metrics.New(), nil), jobs, cache
}

func doGet(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, jobs, _ := newTestServer(t)
	if _, err := jobs.Enqueue(context.Background(), buildqueue.EnqueueRequest{
		Kind: buildqueue.KindUnified, EDLHash: "hash-a", CutsJSON: "[]",
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	rec := doGet(t, server.Routes(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Status string `json:"status"`
		Queue  struct {
			Total   int `json:"Total"`
			Pending int `json:"Pending"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "ok" || payload.Queue.Pending != 1 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestJobEndpoints(t *testing.T) {
	server, jobs, _ := newTestServer(t)
	job, err := jobs.Enqueue(context.Background(), buildqueue.EnqueueRequest{
		Kind: buildqueue.KindUnified, EDLHash: "hash-a", CutsJSON: "[]",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	rec := doGet(t, server.Routes(), "/api/v1/jobs")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed []jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].Key != job.JobKey {
		t.Fatalf("listed = %+v", listed)
	}

	rec = doGet(t, server.Routes(), "/api/v1/jobs/"+job.JobKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doGet(t, server.Routes(), "/api/v1/jobs/unknown-key")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d", rec.Code)
	}

	rec = doGet(t, server.Routes(), "/api/v1/jobs?status=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", rec.Code)
	}
}

func TestBuildStatusEndpoint(t *testing.T) {
	server, _, cache := newTestServer(t)
	if err := cache.MarkFailed("hash-a", "ffmpeg extract: exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	rec := doGet(t, server.Routes(), "/api/v1/builds/hash-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var record artifacts.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Status != artifacts.StatusFailed || record.Error == "" {
		t.Fatalf("record = %+v", record)
	}

	rec = doGet(t, server.Routes(), "/api/v1/builds/unknown-hash")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Status != artifacts.StatusMissing {
		t.Fatalf("record = %+v", record)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	rec := doGet(t, server.Routes(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
