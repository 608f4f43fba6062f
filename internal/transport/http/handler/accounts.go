package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/smartfix-api/internal/application/account"
	"github.com/smartfix-api/internal/domain"
)

const maxAvatarBytes = 5 << 20

// AccountHandler handles account CRUD and self-service endpoints.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

type accountsEnvelope struct {
	Accounts []domain.Account `json:"accounts"`
	Total    int              `json:"total"`
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accounts, err := h.svc.List(r.Context(), domain.AccountFilter{
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Status: q.Get("status"),
	})
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountsEnvelope{Accounts: accounts, Total: len(accounts)})
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentAccount(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Create(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req domain.UpdateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentAccount(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account deleted"})
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req account.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), sess.AccountID, sess.SessionID, req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password changed"})
}

// UploadAvatar accepts a multipart form with the image in the "avatar" field.
func (h *AccountHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	updated, err := h.svc.UploadAvatar(r.Context(), a.AccountID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
