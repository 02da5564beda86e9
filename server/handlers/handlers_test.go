package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/schedule"
	"github.com/nomis52/pipeflow/server/runner"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// emptyProvider has no pipeline loaded.
type emptyProvider struct{}

func (emptyProvider) Pipeline() *pipeline.Pipeline { return nil }
func (emptyProvider) Status() runner.RunStatus     { return runner.RunStatus{} }
func (emptyProvider) NextRun() *time.Time          { return nil }
func (emptyProvider) Triggers() []schedule.Trigger { return nil }
func (emptyProvider) Reload() error                { return errors.New("config file not found") }
func (emptyProvider) History() []runner.RunSummary { return nil }
func (emptyProvider) Run(trigger string) error     { return errors.New("no pipeline available") }
func (emptyProvider) Nodes(string) ([]runner.NodeExecution, error) {
	return nil, errors.New("store unavailable")
}

type busyRunner struct{}

func (busyRunner) Run(string) error { return runner.ErrRunInProgress }

// recordingRunner accepts every run and remembers the trigger.
type recordingRunner struct{ trigger string }

func (r *recordingRunner) Run(trigger string) error {
	r.trigger = trigger
	return nil
}

func serve(h http.Handler, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := serve(http.HandlerFunc(HandleHealth), http.MethodGet, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestHandlers_NoPipeline(t *testing.T) {
	p := emptyProvider{}
	tests := []struct {
		name    string
		handler http.Handler
		method  string
		body    string
	}{
		{name: "status", handler: NewAPIStatusHandler(quietLogger(), p), method: http.MethodGet},
		{name: "plan", handler: NewPlanHandler(quietLogger(), p), method: http.MethodGet},
		{name: "dot", handler: NewDOTHandler(quietLogger(), p), method: http.MethodGet},
		{name: "select", handler: NewSelectHandler(quietLogger(), p), method: http.MethodPost, body: `{"switch": "mode", "option": "fx"}`},
		{name: "enable", handler: NewEnableHandler(quietLogger(), p), method: http.MethodPost, body: `{"node": "load"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.handler, tt.method, tt.body)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), `"error":"no pipeline loaded"`)
		})
	}
}

func TestToggleHandlers_BadRequests(t *testing.T) {
	p := emptyProvider{}
	assert.Equal(t, http.StatusBadRequest, serve(NewSelectHandler(quietLogger(), p), http.MethodPost, `{`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(NewSelectHandler(quietLogger(), p), http.MethodPost, `{"option": "fx"}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(NewEnableHandler(quietLogger(), p), http.MethodPost, `{"enabled": true}`).Code)
}

func TestRunHandler(t *testing.T) {
	w := serve(NewRunHandler(busyRunner{}), http.MethodPost, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")

	w = serve(NewRunHandler(emptyProvider{}), http.MethodPost, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	rec := &recordingRunner{}
	w = serve(NewRunHandler(rec), http.MethodPost, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "manual", rec.trigger)

	req := httptest.NewRequest(http.MethodPost, "/run?trigger=webhook", nil)
	w = httptest.NewRecorder()
	NewRunHandler(rec).ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "webhook", rec.trigger)
	assert.JSONEq(t, `{"trigger":"webhook"}`, w.Body.String())
}

func TestHistoryHandlers(t *testing.T) {
	w := serve(NewHistoryHandler(emptyProvider{}), http.MethodGet, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null\n", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/history/nodes?id=abc", nil)
	rec := httptest.NewRecorder()
	NewHistoryNodesHandler(emptyProvider{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "store unavailable")
}

func TestReloadHandler_Error(t *testing.T) {
	w := serve(NewReloadHandler(quietLogger(), emptyProvider{}), http.MethodPost, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "config file not found")
}

type failingStore struct{ err error }

func (f failingStore) Reload() error { return f.err }

func TestStoreReloadHandler(t *testing.T) {
	w := serve(NewStoreReloadHandler(quietLogger(), failingStore{}), http.MethodPost, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(NewStoreReloadHandler(quietLogger(), failingStore{err: errors.New("disk full")}), http.MethodPost, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
}
