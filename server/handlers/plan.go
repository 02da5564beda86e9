package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nomis52/pipeflow/handoff"
	"github.com/nomis52/pipeflow/workflow"
)

// PlanProvider aggregates what the plan endpoints need.
type PlanProvider interface {
	PipelineProvider
	ScheduleProvider
}

// PlanHandler serves the handoff document of the pipeline's current workflow.
// The format query parameter selects json (default) or yaml.
type PlanHandler struct {
	logger   *slog.Logger
	provider PlanProvider
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(logger *slog.Logger, provider PlanProvider) *PlanHandler {
	return &PlanHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *PlanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	wf, ok := buildWorkflow(w, h.logger, h.provider)
	if !ok {
		return
	}
	p := h.provider.Pipeline()
	doc := handoff.New(p.Name(), wf,
		handoff.WithTriggers(h.provider.Triggers()),
		handoff.WithSnapshot(p.Snapshot()))

	var buf bytes.Buffer
	if err := doc.Write(&buf, format); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if format == "yaml" {
		w.Header().Set("Content-Type", "text/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// DOTHandler serves the pipeline's current workflow as a Graphviz digraph.
type DOTHandler struct {
	logger   *slog.Logger
	provider PipelineProvider
}

// NewDOTHandler creates a new DOTHandler.
func NewDOTHandler(logger *slog.Logger, provider PipelineProvider) *DOTHandler {
	return &DOTHandler{
		logger:   logger,
		provider: provider,
	}
}

// ServeHTTP implements http.Handler.
func (h *DOTHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wf, ok := buildWorkflow(w, h.logger, h.provider)
	if !ok {
		return
	}

	opts := []workflow.DOTOption{workflow.WithGraphName(h.provider.Pipeline().Name())}
	if dir := r.URL.Query().Get("rankdir"); dir != "" {
		opts = append(opts, workflow.WithRankDir(strings.ToUpper(dir)))
	}

	var buf bytes.Buffer
	if err := wf.WriteDOT(&buf, opts...); err != nil {
		h.logger.Error("failed to render workflow", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// buildWorkflow builds the current workflow, writing an error response on failure.
func buildWorkflow(w http.ResponseWriter, logger *slog.Logger, provider PipelineProvider) (*workflow.Workflow, bool) {
	p := provider.Pipeline()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "no pipeline loaded")
		return nil, false
	}
	opts := []workflow.BuildOption{workflow.WithLogger(logger)}
	if ip, ok := provider.(InstrumentsProvider); ok {
		opts = append(opts, workflow.WithInstruments(ip.Instruments()))
	}
	wf, err := workflow.Build(p, opts...)
	if err != nil {
		logger.Error("failed to build workflow", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build workflow: "+err.Error())
		return nil, false
	}
	return wf, true
}
