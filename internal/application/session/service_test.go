package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes and mocks ---

// memAccounts is an in-memory accountStore; Mutate applies fn to a copy and
// stores it back, like the versioned repository does.
type memAccounts struct {
	mu   sync.Mutex
	byID map[string]domain.Account
}

func newMemAccounts(accts ...domain.Account) *memAccounts {
	m := &memAccounts{byID: map[string]domain.Account{}}
	for _, a := range accts {
		m.byID[a.AccountID] = a
	}
	return m
}

func (m *memAccounts) Get(_ context.Context, accountID string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			cp := a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
}

func (m *memAccounts) Mutate(_ context.Context, accountID string, fn func(*domain.Account) error) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	if err := fn(&a); err != nil {
		return nil, err
	}
	a.Version++
	m.byID[accountID] = a
	return &a, nil
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) Disable(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(accountID, role, sessionID string) (string, error) {
	args := m.Called(accountID, role, sessionID)
	return args.String(0), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// --- builder ---

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func activeAccount(t *testing.T) domain.Account {
	return domain.Account{
		AccountID:    "acc-1",
		Email:        "jo@smartfix.test",
		DisplayName:  "Jo",
		PasswordHash: hash(t, "correct-horse"),
		Role:         domain.RoleSupport,
		Status:       domain.StatusActive,
		Version:      1,
	}
}

func newService(accts *memAccounts, ss *mockSessionStore, jwt *mockJWTSigner, ml *mockMailer, c *clock) Service {
	deps := ServiceDeps{
		AccountRepo: accts,
		SessionRepo: ss,
		JWTProvider: jwt,
		Now:         c.now,
	}
	if ml != nil {
		deps.Mailer = ml
	}
	return NewService(deps)
}

func login(svc Service, pw string) (*LoginResult, error) {
	return svc.Login(context.Background(), LoginRequest{Email: "Jo@SmartFix.test", Password: pw})
}

// --- Login ---

func TestLogin_UnknownEmail(t *testing.T) {
	svc := newService(newMemAccounts(), nil, nil, nil, &clock{t0})
	_, err := login(svc, "whatever")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestLogin_Success(t *testing.T) {
	accts := newMemAccounts(activeAccount(t))
	stored := accts.byID["acc-1"]
	stored.FailedAttempts = 3
	accts.byID["acc-1"] = stored

	ss := &mockSessionStore{}
	ss.On("Put", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.AccountID == "acc-1" && s.Enable && !s.TwoFactorVerified
	})).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", "acc-1", domain.RoleSupport, mock.Anything).Return("bearer-token", nil)

	res, err := login(newService(accts, ss, jwt, nil, &clock{t0}), "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "bearer-token", res.Bearer)
	assert.False(t, res.RequiresTwoFactor)
	require.NotNil(t, res.Session.Account)

	a := accts.byID["acc-1"]
	assert.Equal(t, 0, a.FailedAttempts)
	assert.Nil(t, a.LockExpiry)
	require.NotNil(t, a.LastLogin)
	assert.True(t, a.LastLogin.Equal(t0))
	ss.AssertExpectations(t)
}

func TestLogin_RequiresTwoFactor(t *testing.T) {
	a := activeAccount(t)
	a.TwoFactor = &domain.TwoFactor{Secret: "S", Enabled: true}
	ss := &mockSessionStore{}
	ss.On("Put", mock.Anything, mock.Anything).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", mock.Anything, mock.Anything, mock.Anything).Return("tok", nil)

	res, err := login(newService(newMemAccounts(a), ss, jwt, nil, &clock{t0}), "correct-horse")
	require.NoError(t, err)
	assert.True(t, res.RequiresTwoFactor)
}

func TestLogin_FiveFailuresLockAndAlertOnce(t *testing.T) {
	accts := newMemAccounts(activeAccount(t))
	ml := &mockMailer{}
	ml.On("SendEmail", "jo@smartfix.test", mock.Anything, mock.Anything).Return(nil).Once()
	c := &clock{t0}
	svc := newService(accts, nil, nil, ml, c)

	for i := 1; i <= 5; i++ {
		_, err := login(svc, "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidCredential, "attempt %d", i)
		c.t = c.t.Add(time.Second)
	}

	a := accts.byID["acc-1"]
	assert.Equal(t, 5, a.FailedAttempts)
	require.NotNil(t, a.LockExpiry)
	assert.True(t, a.LockExpiry.Equal(t0.Add(4*time.Second).Add(2*time.Hour)))

	// Locked accounts are rejected before the password is looked at, even
	// when it is correct, and nothing further is recorded.
	_, err := login(svc, "correct-horse")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	_, err = login(svc, "wrong")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.Equal(t, 5, accts.byID["acc-1"].FailedAttempts)
	ml.AssertExpectations(t)
}

func TestLogin_FailureAfterLockExpiryResetsCounter(t *testing.T) {
	a := activeAccount(t)
	expiry := t0.Add(-time.Minute)
	a.FailedAttempts = 5
	a.LockExpiry = &expiry

	accts := newMemAccounts(a)
	_, err := login(newService(accts, nil, nil, nil, &clock{t0}), "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	assert.Equal(t, 1, accts.byID["acc-1"].FailedAttempts)
	assert.Nil(t, accts.byID["acc-1"].LockExpiry)
}

func TestLogin_AlertFailureDoesNotBreakLogin(t *testing.T) {
	a := activeAccount(t)
	a.FailedAttempts = 4
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("smtp down"))

	_, err := login(newService(newMemAccounts(a), nil, nil, ml, &clock{t0}), "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	ml.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestLogin_InactiveAccount(t *testing.T) {
	a := activeAccount(t)
	a.Status = domain.StatusBlocked
	accts := newMemAccounts(a)

	_, err := login(newService(accts, nil, nil, nil, &clock{t0}), "wrong")
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
	assert.Equal(t, 0, accts.byID["acc-1"].FailedAttempts)
}

func TestLogin_LockCheckedBeforeStatus(t *testing.T) {
	a := activeAccount(t)
	a.Status = domain.StatusSuspended
	expiry := t0.Add(time.Hour)
	a.LockExpiry = &expiry

	_, err := login(newService(newMemAccounts(a), nil, nil, nil, &clock{t0}), "correct-horse")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
}

// --- GetCurrent / Logout ---

func TestGetCurrent_AttachesAccount(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", AccountID: "acc-1", Enable: true}, nil)

	sess, err := newService(newMemAccounts(activeAccount(t)), ss, nil, nil, &clock{t0}).GetCurrent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "jo@smartfix.test", sess.Account.Email)
}

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Enable: false}, nil)

	_, err := newService(newMemAccounts(), ss, nil, nil, &clock{t0}).GetCurrent(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Disable", mock.Anything, "s1").Return(nil)

	require.NoError(t, newService(newMemAccounts(), ss, nil, nil, &clock{t0}).Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}
