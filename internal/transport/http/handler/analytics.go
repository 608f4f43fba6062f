package handler

import (
	"net/http"

	"github.com/smartfix-api/internal/application/analytics"
)

// AnalyticsHandler serves the dashboard figures.
type AnalyticsHandler struct {
	svc analytics.Service
}

func NewAnalyticsHandler(svc analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Overview(r.Context())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Trends(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Performance(r.Context())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AnalyticsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Revenue(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
