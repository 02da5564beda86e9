package handlers

import (
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"
)

// ConfigHandler serves the loaded configuration with credentials masked. YAML is the
// default; ?format=json returns the same document as JSON.
type ConfigHandler struct {
	provider ConfigProvider
}

func NewConfigHandler(provider ConfigProvider) *ConfigHandler {
	return &ConfigHandler{provider: provider}
}

func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.provider.Config().Redacted()

	switch format := r.URL.Query().Get("format"); format {
	case "json":
		writeJSON(w, http.StatusOK, cfg)
	case "", "yaml":
		w.Header().Set("Content-Type", "text/yaml")
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(cfg); err != nil {
			slog.Error("failed to encode config", "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+format)
	}
}
