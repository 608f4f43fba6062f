package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/smartfix-api/internal/domain"
	jwtinfra "github.com/smartfix-api/internal/infrastructure/jwt"
	"github.com/smartfix-api/internal/logger"
)

type contextKey string

const (
	ClaimsKey  contextKey = "claims"
	sessionKey contextKey = "session"
)

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type sessionLoader interface {
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Auth validates the Bearer JWT and injects its claims into the context.
func Auth(verifier tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadAccount resolves the session named in the claims and rejects it when
// the session was revoked or the account is locked or not active.
func LoadAccount(sessions sessionLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			sess, status, msg := CurrentSession(r.Context(), sessions, claims.SessionID)
			if sess == nil {
				writeJSONError(w, status, msg)
				return
			}
			l := logger.FromContext(r.Context()).With("account_id", sess.AccountID)
			ctx := l.WithContext(WithSession(r.Context(), sess))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentSession loads a session and applies the account gate shared by
// REST requests and WebSocket upgrades. On rejection it returns a nil session
// with the status code and message to send.
func CurrentSession(ctx context.Context, sessions sessionLoader, sessionID string) (*domain.Session, int, string) {
	sess, err := sessions.GetCurrent(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnauthorized):
		return nil, http.StatusUnauthorized, "session expired"
	case err != nil:
		logger.FromContext(ctx).Error().Err(err).Msg("load session")
		return nil, http.StatusInternalServerError, "internal error"
	}
	a := sess.Account
	if domain.IsLocked(time.Now(), a.LockExpiry) {
		return nil, http.StatusLocked, domain.ErrAccountLocked.Error()
	}
	if a.Status != domain.StatusActive {
		return nil, http.StatusForbidden, domain.ErrAccountInactive.Error()
	}
	return sess, 0, ""
}

// RequireTwoFactor rejects sessions that still owe a second factor.
func RequireTwoFactor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if sess.Account.TwoFactorEnabled() && !sess.TwoFactorVerified {
			writeJSONError(w, http.StatusForbidden, domain.ErrTwoFactorRequired.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}

// WithSession stores a loaded session (with its account) in ctx.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok && s.Account != nil
}

// AccountFromContext returns the authenticated account.
func AccountFromContext(ctx context.Context) (*domain.Account, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return nil, false
	}
	return s.Account, true
}
