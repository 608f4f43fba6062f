package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartfix-api/internal/application/account"
	"github.com/smartfix-api/internal/application/notification"
	"github.com/smartfix-api/internal/application/session"
	"github.com/smartfix-api/internal/domain"
	jwtinfra "github.com/smartfix-api/internal/infrastructure/jwt"
	"github.com/smartfix-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*session.LoginResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockSessionSvc) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotificationSvc struct {
	mock.Mock
	notification.Service
}

func (m *mockNotificationSvc) List(ctx context.Context, actor *domain.Account, q domain.NotificationQuery) (*domain.NotificationPage, error) {
	args := m.Called(ctx, actor, q)
	if p, _ := args.Get(0).(*domain.NotificationPage); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) Create(ctx context.Context, actor *domain.Account, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	args := m.Called(ctx, actor, req)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) MarkRead(ctx context.Context, actor *domain.Account, notificationID string) error {
	return m.Called(ctx, actor, notificationID).Error(0)
}

type mockAccountSvc struct {
	mock.Mock
	account.Service
}

func (m *mockAccountSvc) UploadAvatar(ctx context.Context, accountID, filename, contentType string, r io.Reader) (*domain.Account, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, accountID, filename, contentType, string(body))
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountSvc) ChangePassword(ctx context.Context, accountID, sessionID string, req account.ChangePasswordRequest) error {
	return m.Called(ctx, accountID, sessionID, req).Error(0)
}

type stubVerifier struct {
	claims *jwtinfra.Claims
	err    error
}

func (s stubVerifier) Verify(string) (*jwtinfra.Claims, error) { return s.claims, s.err }

type mockHub struct{ mock.Mock }

func (m *mockHub) Serve(w http.ResponseWriter, r *http.Request, a *domain.Account) error {
	return m.Called(a.AccountID).Error(0)
}

// --- helpers ---

func asAccount(r *http.Request, a *domain.Account) *http.Request {
	sess := &domain.Session{SessionID: "s1", AccountID: a.AccountID, Enable: true, Account: a}
	return r.WithContext(middleware.WithSession(r.Context(), sess))
}

func withChiID(r *http.Request, id string) *http.Request {
	return withURLParam(r, "id", id)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) MessageEnvelope {
	t.Helper()
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

// --- error mapping ---

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("login: %w", domain.ErrAccountLocked), http.StatusLocked},
		{fmt.Errorf("login: %w", domain.ErrAccountInactive), http.StatusForbidden},
		{fmt.Errorf("login: %w", domain.ErrInvalidCredential), http.StatusUnauthorized},
		{domain.ErrReauthenticationRequired, http.StatusUnauthorized},
		{domain.ErrInvalidBackupCode, http.StatusUnauthorized},
		{domain.ErrTwoFactorRequired, http.StatusForbidden},
		{domain.ErrTwoFactorSetupMissing, http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrValidation), http.StatusUnprocessableEntity},
		{domain.ErrDuplicateKey, http.StatusConflict},
		{domain.ErrVersionConflict, http.StatusConflict},
		{domain.ErrNotificationNotFound, http.StatusNotFound},
		{errors.New("dynamo unreachable"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestHTTPError_HidesInternalText(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret table name"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret")
}

// --- sessions ---

func TestLogin_InvalidBody(t *testing.T) {
	h := NewSessionHandler(&mockSessionSvc{})
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewBufferString("not-json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_ValidationFailure(t *testing.T) {
	h := NewSessionHandler(&mockSessionSvc{})
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", jsonBody(t, map[string]string{"email": "nope"})))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLogin_Locked(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Login", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("login: %w", domain.ErrAccountLocked))
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", jsonBody(t, session.LoginRequest{Email: "a@b.co", Password: "pw"})))
	assert.Equal(t, http.StatusLocked, rr.Code)
	assert.Contains(t, decodeEnvelope(t, rr).Error, "temporarily locked")
}

func TestLogin_Success(t *testing.T) {
	svc := &mockSessionSvc{}
	a := &domain.Account{AccountID: "a1", Email: "a@b.co", PasswordHash: "hash"}
	svc.On("Login", mock.Anything, session.LoginRequest{Email: "a@b.co", Password: "pw"}).Return(&session.LoginResult{
		Bearer:            "jwt",
		RequiresTwoFactor: true,
		Session:           &domain.Session{SessionID: "s1", Account: a},
	}, nil)
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/login", jsonBody(t, session.LoginRequest{Email: "a@b.co", Password: "pw"})))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "hash")

	var resp LoginEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "jwt", resp.Token)
	assert.True(t, resp.RequiresTwoFactor)
	assert.Equal(t, "a1", resp.Account.AccountID)
}

func TestLogout(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("Logout", mock.Anything, "s1").Return(nil)
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Logout(rr, asAccount(httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil), &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- notifications ---

func TestNotificationList_NoAccount(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationSvc{})
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestNotificationList_PassesQuery(t *testing.T) {
	svc := &mockNotificationSvc{}
	a := &domain.Account{AccountID: "a1", Role: domain.RoleViewer}
	svc.On("List", mock.Anything, a, domain.NotificationQuery{Page: 2, Limit: 5, Type: "warning"}).
		Return(&domain.NotificationPage{CurrentPage: 2}, nil)
	h := NewNotificationHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, asAccount(httptest.NewRequest(http.MethodGet, "/v1/notifications?page=2&limit=5&type=warning", nil), a))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestNotificationMarkRead_NotFound(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("MarkRead", mock.Anything, mock.Anything, "n1").Return(domain.ErrNotificationNotFound)
	h := NewNotificationHandler(svc)

	r := withChiID(httptest.NewRequest(http.MethodPut, "/v1/notifications/n1/read", nil), "n1")
	rr := httptest.NewRecorder()
	h.MarkRead(rr, asAccount(r, &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNotificationCreate_RejectsUnknownPriority(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationSvc{})
	body := jsonBody(t, map[string]string{"title": "T", "message": "M", "priority": "critical"})
	rr := httptest.NewRecorder()
	h.Create(rr, asAccount(httptest.NewRequest(http.MethodPost, "/v1/notifications", body), &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeEnvelope(t, rr).Error, "priority must be one of")
}

func TestNotificationCreate_Created(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(&domain.Notification{NotificationID: "n1"}, nil)
	h := NewNotificationHandler(svc)

	body := jsonBody(t, map[string]string{"title": "T", "message": "M", "priority": "urgent"})
	rr := httptest.NewRecorder()
	h.Create(rr, asAccount(httptest.NewRequest(http.MethodPost, "/v1/notifications", body), &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusCreated, rr.Code)
}

// --- accounts ---

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc := &mockAccountSvc{}
	svc.On("ChangePassword", mock.Anything, "a1", "s1", mock.Anything).Return(domain.ErrReauthenticationRequired)
	h := NewAccountHandler(svc)

	body := jsonBody(t, account.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "newpass1"})
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, asAccount(httptest.NewRequest(http.MethodPut, "/v1/accounts/me/password", body), &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChangePassword_KeepsCallingSession(t *testing.T) {
	svc := &mockAccountSvc{}
	svc.On("ChangePassword", mock.Anything, "a1", "s1", account.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "newpass1"}).Return(nil).Once()
	h := NewAccountHandler(svc)

	body := jsonBody(t, account.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "newpass1"})
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, asAccount(httptest.NewRequest(http.MethodPut, "/v1/accounts/me/password", body), &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUploadAvatar(t *testing.T) {
	svc := &mockAccountSvc{}
	svc.On("UploadAvatar", mock.Anything, "a1", "me.png", "image/png", "PNGDATA").
		Return(&domain.Account{AccountID: "a1"}, nil)
	h := NewAccountHandler(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="avatar"; filename="me.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, _ = part.Write([]byte("PNGDATA"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/v1/accounts/me/avatar", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.UploadAvatar(rr, asAccount(r, &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUploadAvatar_MissingFile(t *testing.T) {
	h := NewAccountHandler(&mockAccountSvc{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/v1/accounts/me/avatar", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.UploadAvatar(rr, asAccount(r, &domain.Account{AccountID: "a1"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- websocket ---

func TestWSConnect(t *testing.T) {
	active := &domain.Account{AccountID: "a1", Status: domain.StatusActive}
	enrolled := &domain.Account{AccountID: "a2", Status: domain.StatusActive, TwoFactor: &domain.TwoFactor{Secret: "S", Enabled: true}}
	claims := &jwtinfra.Claims{AccountID: "a1", SessionID: "s1"}

	tests := []struct {
		name     string
		target   string
		verifier stubVerifier
		sess     *domain.Session
		want     int
	}{
		{name: "no token", target: "/v1/ws", want: http.StatusUnauthorized},
		{name: "bad token", target: "/v1/ws?token=x", verifier: stubVerifier{err: errors.New("bad")}, want: http.StatusUnauthorized},
		{
			name:     "unverified 2fa",
			target:   "/v1/ws?token=x",
			verifier: stubVerifier{claims: claims},
			sess:     &domain.Session{SessionID: "s1", AccountID: "a2", Enable: true, Account: enrolled},
			want:     http.StatusForbidden,
		},
		{
			name:     "ok",
			target:   "/v1/ws?token=x",
			verifier: stubVerifier{claims: claims},
			sess:     &domain.Session{SessionID: "s1", AccountID: "a1", Enable: true, Account: active},
			want:     http.StatusOK,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &mockSessionSvc{}
			sessions.On("GetCurrent", mock.Anything, "s1").Return(tc.sess, nil)
			hub := &mockHub{}
			hub.On("Serve", "a1").Return(nil)

			rr := httptest.NewRecorder()
			NewWSHandler(tc.verifier, sessions, hub).Connect(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))
			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusOK {
				hub.AssertCalled(t, "Serve", "a1")
			} else {
				hub.AssertNotCalled(t, "Serve", mock.Anything)
			}
		})
	}
}

// --- health ---

type fixedCounter int

func (f fixedCounter) Connections() int { return int(f) }

func TestPing(t *testing.T) {
	h := NewHealthHandler(fixedCounter(3))

	rr := httptest.NewRecorder()
	h.Ping(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil), "action", "ping"))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "pong", resp.Message)
	assert.Equal(t, 3, resp.Connections)

	rr = httptest.NewRecorder()
	h.Ping(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/health-check/nope", nil), "action", "nope"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
