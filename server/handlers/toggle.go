package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nomis52/pipeflow/pipeline"
)

// SelectRequest defines the request body for POST /api/select.
type SelectRequest struct {
	// Switch is a dotted path, e.g. "fx.mode" for a switch inside sub-pipeline fx.
	Switch string `json:"switch"`
	Option string `json:"option"`
}

// EnableRequest defines the request body for POST /api/enable.
type EnableRequest struct {
	Node    string `json:"node"`
	Enabled bool   `json:"enabled"`
}

// SelectHandler changes a switch selection on the served pipeline.
type SelectHandler struct {
	logger   *slog.Logger
	provider PipelineProvider
}

// NewSelectHandler creates a new SelectHandler.
func NewSelectHandler(logger *slog.Logger, provider PipelineProvider) *SelectHandler {
	return &SelectHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *SelectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Switch == "" || req.Option == "" {
		writeError(w, http.StatusBadRequest, "switch and option are required")
		return
	}

	owner, name, err := resolve(h.provider, req.Switch)
	if err == nil {
		err = owner.Select(name, req.Option)
	}
	if err != nil {
		writeToggleError(w, err)
		return
	}

	h.logger.Info("switch selected", "switch", req.Switch, "option", req.Option)
	w.WriteHeader(http.StatusNoContent)
}

// EnableHandler enables or disables a node on the served pipeline.
type EnableHandler struct {
	logger   *slog.Logger
	provider PipelineProvider
}

// NewEnableHandler creates a new EnableHandler.
func NewEnableHandler(logger *slog.Logger, provider PipelineProvider) *EnableHandler {
	return &EnableHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *EnableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Node == "" {
		writeError(w, http.StatusBadRequest, "node is required")
		return
	}

	owner, name, err := resolve(h.provider, req.Node)
	if err == nil {
		err = owner.SetEnabled(name, req.Enabled)
	}
	if err != nil {
		writeToggleError(w, err)
		return
	}

	h.logger.Info("node toggled", "node", req.Node, "enabled", req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

var errNoPipeline = errors.New("no pipeline loaded")

// resolve finds the pipeline owning the node at a dotted path.
func resolve(provider PipelineProvider, path string) (*pipeline.Pipeline, string, error) {
	p := provider.Pipeline()
	if p == nil {
		return nil, "", errNoPipeline
	}
	return p.Resolve(path)
}

// writeToggleError maps topology errors to status codes.
func writeToggleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoPipeline):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, pipeline.ErrUnknownNode):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
