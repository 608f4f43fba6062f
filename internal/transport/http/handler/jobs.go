package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/smartfix-api/internal/application/job"
	"github.com/smartfix-api/internal/domain"
)

// JobHandler handles job endpoints.
type JobHandler struct {
	svc job.Service
}

func NewJobHandler(svc job.Service) *JobHandler {
	return &JobHandler{svc: svc}
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := h.svc.List(r.Context(), domain.JobQuery{
		Page:         page,
		Limit:        limit,
		Search:       q.Get("search"),
		Status:       q.Get("status"),
		Priority:     q.Get("priority"),
		Category:     q.Get("category"),
		TechnicianID: q.Get("technicianId"),
		SortBy:       q.Get("sortBy"),
		SortOrder:    q.Get("sortOrder"),
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.CreateJobRequest
	if !decode(w, r, &req) {
		return
	}
	j, err := h.svc.Create(r.Context(), a, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.UpdateJobStatusRequest
	if !decode(w, r, &req) {
		return
	}
	j, err := h.svc.UpdateStatus(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *JobHandler) Assign(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.AssignJobRequest
	if !decode(w, r, &req) {
		return
	}
	j, err := h.svc.Assign(r.Context(), a, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
