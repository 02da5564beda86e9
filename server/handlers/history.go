package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nomis52/pipeflow/server/runner"
)

// HistoryHandler lists past runs, most recent first. ?limit=N returns only the newest N.
type HistoryHandler struct {
	provider HistoryProvider
}

func NewHistoryHandler(provider HistoryProvider) *HistoryHandler {
	return &HistoryHandler{provider: provider}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runs := h.provider.History()
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(runs) {
			runs = runs[:limit]
		}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HistoryNodesHandler handles requests for the node executions of a specific run.
type HistoryNodesHandler struct {
	provider HistoryProvider
}

// NewHistoryNodesHandler creates a new HistoryNodesHandler.
func NewHistoryNodesHandler(provider HistoryProvider) *HistoryNodesHandler {
	return &HistoryNodesHandler{
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *HistoryNodesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	nodes, err := h.provider.Nodes(id)
	if errors.Is(err, runner.ErrUnknownRun) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if nodes == nil {
		nodes = []runner.NodeExecution{}
	}
	writeJSON(w, http.StatusOK, nodes)
}
