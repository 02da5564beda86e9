package handlers

import (
	"errors"
	"net/http"

	"github.com/nomis52/pipeflow/server/runner"
)

// RunResponse acknowledges a run that has been started in the background.
type RunResponse struct {
	Trigger string `json:"trigger"`
}

// RunHandler starts a run of the served pipeline. The trigger recorded in the run
// history is "manual" unless ?trigger= names another.
type RunHandler struct {
	runner PipelineRunner
}

func NewRunHandler(r PipelineRunner) *RunHandler {
	return &RunHandler{runner: r}
}

func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	trigger := r.URL.Query().Get("trigger")
	if trigger == "" {
		trigger = "manual"
	}

	err := h.runner.Run(trigger)
	switch {
	case errors.Is(err, runner.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, RunResponse{Trigger: trigger})
	}
}
