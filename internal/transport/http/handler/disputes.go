package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/smartfix-api/internal/application/dispute"
	"github.com/smartfix-api/internal/domain"
)

// DisputeHandler handles dispute endpoints.
type DisputeHandler struct {
	svc dispute.Service
}

func NewDisputeHandler(svc dispute.Service) *DisputeHandler {
	return &DisputeHandler{svc: svc}
}

func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.svc.List(r.Context(), domain.DisputeQuery{
		Page:       page,
		Limit:      limit,
		Search:     q.Get("search"),
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		Category:   q.Get("category"),
		AssignedTo: q.Get("assignedTo"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DisputeHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.CreateDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Create(r.Context(), a, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.AssignDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Assign(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.DisputeCommentRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.AddComment(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.ResolveDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Resolve(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.EscalateDisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.svc.Escalate(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DisputeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
