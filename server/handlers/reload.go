package handlers

import (
	"log/slog"
	"net/http"
)

// ReloadResponse is returned by a successful POST /reload.
type ReloadResponse struct {
	Pipeline  string   `json:"pipeline"`
	Activated []string `json:"activated"`
}

// ConfigReloader reloads the config and provides the rebuilt pipeline.
type ConfigReloader interface {
	Reloader
	PipelineProvider
}

// ReloadHandler handles requests to reload configuration from disk.
type ReloadHandler struct {
	logger   *slog.Logger
	reloader ConfigReloader
}

// NewReloadHandler creates a new ReloadHandler.
func NewReloadHandler(logger *slog.Logger, reloader ConfigReloader) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger,
		reloader: reloader,
	}
}

// ServeHTTP implements http.Handler. The rebuilt pipeline starts from the selections in
// the config file; selections made through the API are discarded.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading configuration")

	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("failed to reload configuration", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload configuration: "+err.Error())
		return
	}

	resp := ReloadResponse{Activated: []string{}}
	if p := h.reloader.Pipeline(); p != nil {
		resp.Pipeline = p.Name()
		for _, n := range p.Snapshot().Nodes {
			if n.Name != "" && n.Activated {
				resp.Activated = append(resp.Activated, n.Name)
			}
		}
	}

	h.logger.Info("configuration reloaded successfully", "pipeline", resp.Pipeline)
	writeJSON(w, http.StatusOK, resp)
}

// ReloadableStore is a store that can be manually reloaded.
type ReloadableStore interface {
	Reload() error
}

// StoreReloadHandler handles requests to re-read the run history from disk.
type StoreReloadHandler struct {
	logger *slog.Logger
	store  ReloadableStore
}

// NewStoreReloadHandler creates a new StoreReloadHandler.
func NewStoreReloadHandler(logger *slog.Logger, store ReloadableStore) *StoreReloadHandler {
	return &StoreReloadHandler{
		logger: logger,
		store:  store,
	}
}

// ServeHTTP implements http.Handler.
func (h *StoreReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(); err != nil {
		h.logger.Error("failed to reload run history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload run history: "+err.Error())
		return
	}
	h.logger.Info("run history reloaded")
	w.WriteHeader(http.StatusNoContent)
}
