package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/pkg/validate"
	"github.com/smartfix-api/internal/transport/http/middleware"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// LoginEnvelope wraps login responses. The token is always issued; when
// RequiresTwoFactor is set it only unlocks the /2fa routes until verified.
type LoginEnvelope struct {
	Token             string          `json:"token"`
	RequiresTwoFactor bool            `json:"requires_two_factor"`
	Account           *domain.Account `json:"account"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decode reads a JSON body into v and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		httpError(w, r, err)
		return false
	}
	return true
}

// httpError maps a service error to a status code. Unknown errors are logged
// and reported as 500 without their text.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrTwoFactorRequired):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrReauthenticationRequired),
		errors.Is(err, domain.ErrInvalidVerificationCode),
		errors.Is(err, domain.ErrInvalidBackupCode):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrTwoFactorSetupMissing),
		errors.Is(err, domain.ErrTwoFactorNotEnabled):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// currentAccount returns the account loaded by middleware.LoadAccount,
// writing 401 when absent.
func currentAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	a, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return a, ok
}

func currentSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return s, ok
}
