package handler

import (
	"net/http"

	"github.com/smartfix-api/internal/application/twofactor"
)

type TwoFactorHandler struct {
	svc twofactor.Service
}

func NewTwoFactorHandler(svc twofactor.Service) *TwoFactorHandler {
	return &TwoFactorHandler{svc: svc}
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,len=6,numeric"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

type backupCodesEnvelope struct {
	BackupCodes []string `json:"backupCodes"`
}

func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Setup(r.Context(), sess.AccountID, sess.TwoFactorVerified)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Enable(r.Context(), sess.AccountID, sess.SessionID, req.Token); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "2FA enabled"})
}

func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Disable(r.Context(), a.AccountID, req.Password); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "2FA disabled"})
}

func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req twofactor.VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Verify(r.Context(), sess.AccountID, sess.SessionID, req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TwoFactorHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	codes, err := h.svc.RegenerateBackupCodes(r.Context(), a.AccountID, req.Password)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backupCodesEnvelope{BackupCodes: codes})
}

func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	a, ok := currentAccount(w, r)
	if !ok {
		return
	}
	status, err := h.svc.Status(r.Context(), a.AccountID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
