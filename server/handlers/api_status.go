package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nomis52/pipeflow/pipeline"
	"github.com/nomis52/pipeflow/server/runner"
)

// NextRunResponse is the JSON response for the next run information.
type NextRunResponse struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// APIStatusResponse is the consolidated response for /api/status.
type APIStatusResponse struct {
	Pipeline *pipeline.Snapshot `json:"pipeline"`
	// Hidden lists the pipeline parameters no activated node uses.
	Hidden  []string         `json:"hidden"`
	Run     runner.RunStatus `json:"run"`
	NextRun NextRunResponse  `json:"next_run"`
}

// APIStatusProvider aggregates all the providers needed for the status endpoint.
type APIStatusProvider interface {
	PipelineProvider
	RunStatusProvider
	NextRun() *time.Time
}

// APIStatusHandler handles requests for the consolidated status endpoint.
type APIStatusHandler struct {
	logger   *slog.Logger
	provider APIStatusProvider
}

// NewAPIStatusHandler creates a new APIStatusHandler.
func NewAPIStatusHandler(logger *slog.Logger, provider APIStatusProvider) *APIStatusHandler {
	return &APIStatusHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *APIStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := h.provider.Pipeline()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "no pipeline loaded")
		return
	}

	snap := p.Snapshot()
	hidden := []string{}
	for _, pt := range snap.Root().Ports {
		if pt.Hidden {
			hidden = append(hidden, pt.Name)
		}
	}

	nextRun := h.provider.NextRun()
	writeJSON(w, http.StatusOK, APIStatusResponse{
		Pipeline: snap,
		Hidden:   hidden,
		Run:      h.provider.Status(),
		NextRun: NextRunResponse{
			Scheduled: nextRun != nil,
			NextRun:   nextRun,
		},
	})
}
