package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type connectionCounter interface {
	Connections() int
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	hub connectionCounter
}

func NewHealthHandler(hub connectionCounter) *HealthHandler { return &HealthHandler{hub: hub} }

type healthEnvelope struct {
	Message     string `json:"message"`
	Connections int    `json:"connections"`
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "action") != "ping" {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	resp := healthEnvelope{Message: "pong"}
	if h.hub != nil {
		resp.Connections = h.hub.Connections()
	}
	writeJSON(w, http.StatusOK, resp)
}
