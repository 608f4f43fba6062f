package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smartfix-api/internal/domain"
	jwtinfra "github.com/smartfix-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderWithKey(privKey, &privKey.PublicKey, 24*time.Hour)
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

type mockSessions struct{ mock.Mock }

func (m *mockSessions) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func withClaims(r *http.Request, sessionID string) *http.Request {
	ctx := context.WithValue(r.Context(), ClaimsKey, &jwtinfra.Claims{AccountID: "a1", SessionID: sessionID})
	return r.WithContext(ctx)
}

func sessionFor(a *domain.Account, verified bool) *domain.Session {
	return &domain.Session{SessionID: "s1", AccountID: a.AccountID, Enable: true, TwoFactorVerified: verified, Account: a}
}

func TestAuth_MissingHeader(t *testing.T) {
	p := newTestProvider(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_BadToken(t *testing.T) {
	p := newTestProvider(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_TokenFromOtherKey(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	claims := &jwtinfra.Claims{
		AccountID: "a1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privKey)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	Auth(newTestProvider(t))(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuth_ValidToken_InjectsClaims(t *testing.T) {
	p := newTestProvider(t)
	signed, err := p.Sign("a1", domain.RoleSupport, "s1")
	require.NoError(t, err)

	var got *jwtinfra.Claims
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	Auth(p)(capture).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "a1", got.AccountID)
	assert.Equal(t, domain.RoleSupport, got.Role)
	assert.Equal(t, "s1", got.SessionID)
}

func TestLoadAccount(t *testing.T) {
	future := time.Now().Add(time.Hour)
	tests := []struct {
		name    string
		sess    *domain.Session
		err     error
		want    int
		wantMsg string
	}{
		{name: "active", sess: sessionFor(&domain.Account{AccountID: "a1", Status: domain.StatusActive}, false), want: http.StatusOK},
		{name: "revoked", err: fmt.Errorf("session expired: %w", domain.ErrUnauthorized), want: http.StatusUnauthorized},
		{name: "missing", err: fmt.Errorf("session: %w", domain.ErrNotFound), want: http.StatusUnauthorized},
		{name: "store down", err: fmt.Errorf("dial tcp: refused"), want: http.StatusInternalServerError},
		{
			name:    "locked",
			sess:    sessionFor(&domain.Account{AccountID: "a1", Status: domain.StatusActive, LockExpiry: &future}, false),
			want:    http.StatusLocked,
			wantMsg: domain.ErrAccountLocked.Error(),
		},
		{
			name:    "blocked",
			sess:    sessionFor(&domain.Account{AccountID: "a1", Status: domain.StatusBlocked}, false),
			want:    http.StatusForbidden,
			wantMsg: domain.ErrAccountInactive.Error(),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sessions := new(mockSessions)
			sessions.On("GetCurrent", mock.Anything, "s1").Return(tc.sess, tc.err)

			var loaded *domain.Account
			capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				loaded, _ = AccountFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), "s1")
			rr := httptest.NewRecorder()
			LoadAccount(sessions)(capture).ServeHTTP(rr, req)

			assert.Equal(t, tc.want, rr.Code)
			if tc.wantMsg != "" {
				assert.Contains(t, rr.Body.String(), tc.wantMsg)
			}
			if tc.want == http.StatusOK {
				require.NotNil(t, loaded)
				assert.Equal(t, "a1", loaded.AccountID)
			}
		})
	}
}

func TestLoadAccount_NoClaims(t *testing.T) {
	rr := httptest.NewRecorder()
	LoadAccount(new(mockSessions))(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireTwoFactor(t *testing.T) {
	enrolled := &domain.Account{AccountID: "a1", TwoFactor: &domain.TwoFactor{Secret: "S", Enabled: true}}
	plain := &domain.Account{AccountID: "a2"}

	tests := []struct {
		name string
		sess *domain.Session
		want int
	}{
		{"no 2fa", sessionFor(plain, false), http.StatusOK},
		{"2fa unverified", sessionFor(enrolled, false), http.StatusForbidden},
		{"2fa verified", sessionFor(enrolled, true), http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithSession(req.Context(), tc.sess))
			rr := httptest.NewRecorder()
			RequireTwoFactor(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}
