package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvid/runpod-worker/internal/handler"
	"github.com/memvid/runpod-worker/internal/runner"
	"github.com/memvid/runpod-worker/internal/websocket"
)

type stubRunner struct {
	result runner.Result
}

func (s *stubRunner) Run(context.Context, []string, map[string]string) (*runner.Result, error) {
	r := s.result
	return &r, nil
}

func newTestMux(result runner.Result) *http.ServeMux {
	h := handler.New("/usr/local/bin/memvid-export-api", &stubRunner{result: result})
	hub := websocket.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	AddRoutes(mux, h, hub)
	return mux
}

func TestRunSyncSuccess(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{"status":"ok","files":["a.mp4"]}`})

	body := `{"id":"rp-1","input":{"job_id":"job-1","payload_ref":"ref","output_prefix":"out"}}`
	req := httptest.NewRequest(http.MethodPost, "/runsync", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"adapter":"python-runpod-handler"`)
	assert.Contains(t, rec.Body.String(), `"runpodJobId":"rp-1"`)
}

func TestRunSyncPipelineFailure(t *testing.T) {
	mux := newTestMux(runner.Result{ExitCode: 1, Stderr: "boom"})

	body := `{"id":"rp-1","input":{"job_id":"job-1","payload_ref":"ref","output_prefix":"out"}}`
	req := httptest.NewRequest(http.MethodPost, "/runsync", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// Pipeline failures are a valid envelope, not an HTTP error.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "RUST_EXECUTION_FAILED")
}

func TestRunSyncInvalidInput(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{}`})

	req := httptest.NewRequest(http.MethodPost, "/runsync", strings.NewReader(`{"id":"rp-1","input":{}}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestRunSyncRejectsBadJSON(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{}`})

	req := httptest.NewRequest(http.MethodPost, "/runsync", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSyncRejectsGet(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{}`})

	req := httptest.NewRequest(http.MethodGet, "/runsync", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{}`})

	for _, path := range []string{"/health", "/health/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestReadinessTracksExecutable(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{}`})

	SetExecutablePath("/nonexistent/export-binary")
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	dir := t.TempDir()
	path := filepath.Join(dir, "export-binary")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	SetExecutablePath(path)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestMux(runner.Result{Stdout: `{}`})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "export_worker_jobs_handled_total")
}
