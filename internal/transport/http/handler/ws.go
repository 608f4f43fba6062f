package handler

import (
	"context"
	"net/http"

	"github.com/smartfix-api/internal/domain"
	jwtinfra "github.com/smartfix-api/internal/infrastructure/jwt"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/transport/http/middleware"
)

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type sessionLoader interface {
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
}

type socketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, a *domain.Account) error
}

// WSHandler upgrades authenticated requests to a realtime socket. Browsers
// cannot set headers on the upgrade, so the JWT travels in ?token=.
type WSHandler struct {
	jwt      tokenVerifier
	sessions sessionLoader
	hub      socketServer
}

func NewWSHandler(jwt tokenVerifier, sessions sessionLoader, hub socketServer) *WSHandler {
	return &WSHandler{jwt: jwt, sessions: sessions, hub: hub}
}

func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token is required")
		return
	}
	claims, err := h.jwt.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	sess, status, msg := middleware.CurrentSession(r.Context(), h.sessions, claims.SessionID)
	if sess == nil {
		writeError(w, status, msg)
		return
	}
	if sess.Account.TwoFactorEnabled() && !sess.TwoFactorVerified {
		writeError(w, http.StatusForbidden, domain.ErrTwoFactorRequired.Error())
		return
	}
	if err := h.hub.Serve(w, r, sess.Account); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Str("account_id", sess.AccountID).Msg("websocket upgrade failed")
	}
}
