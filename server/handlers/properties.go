package handlers

import (
	"net/http"
	"time"

	"github.com/nomis52/pipeflow/buildinfo"
)

// ServerProperties holds metadata about the running server instance.
type ServerProperties struct {
	Build     buildinfo.Properties `json:"build"`
	StartedAt time.Time            `json:"started_at"`
	Hostname  string               `json:"hostname"`
}

// PropertiesHandler serves the server's build and instance properties.
type PropertiesHandler struct {
	props ServerProperties
}

// NewPropertiesHandler creates a new PropertiesHandler.
func NewPropertiesHandler(props ServerProperties) *PropertiesHandler {
	return &PropertiesHandler{props: props}
}

// ServeHTTP implements http.Handler.
func (h *PropertiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.props)
}
