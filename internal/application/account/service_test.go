package account

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes and mocks ---

type memAccounts struct {
	byID      map[string]domain.Account
	createErr error
}

func newMemAccounts(accts ...domain.Account) *memAccounts {
	m := &memAccounts{byID: map[string]domain.Account{}}
	for _, a := range accts {
		m.byID[a.AccountID] = a
	}
	return m
}

func (m *memAccounts) Create(_ context.Context, a *domain.Account) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[a.AccountID] = *a
	return nil
}

func (m *memAccounts) Get(_ context.Context, accountID string) (*domain.Account, error) {
	a, ok := m.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, a := range m.byID {
		if a.Email == email {
			cp := a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
}

func (m *memAccounts) Mutate(_ context.Context, accountID string, fn func(*domain.Account) error) (*domain.Account, error) {
	a, ok := m.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
	if err := fn(&a); err != nil {
		return nil, err
	}
	m.byID[accountID] = a
	return &a, nil
}

func (m *memAccounts) List(_ context.Context, _ domain.AccountFilter) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	return out, nil
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) DisableByAccount(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}
func (m *mockSessionStore) DisableByAccountExcept(ctx context.Context, accountID, keepSessionID string) error {
	return m.Called(ctx, accountID, keepSessionID).Error(0)
}

type mockFileStore struct{ mock.Mock }

func (m *mockFileStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.String(0), args.Error(1)
}
func (m *mockFileStore) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// --- builder ---

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	admin  = domain.Account{AccountID: "adm", Email: "admin@smartfix.test", Role: domain.RoleAdmin, Status: domain.StatusActive}
	viewer = domain.Account{AccountID: "v1", Email: "v1@smartfix.test", DisplayName: "Vee", Role: domain.RoleViewer, Status: domain.StatusActive}
)

func newService(accts *memAccounts, ss *mockSessionStore, fs *mockFileStore) Service {
	return NewService(ServiceDeps{
		AccountRepo: accts,
		SessionRepo: ss,
		FileStore:   fs,
		Now:         func() time.Time { return t0 },
	})
}

func strPtr(s string) *string { return &s }

// --- Get ---

func TestGet_Authorization(t *testing.T) {
	svc := newService(newMemAccounts(admin, viewer), nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, &viewer, "adm")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	a, err := svc.Get(ctx, &viewer, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Vee", a.DisplayName)

	_, err = svc.Get(ctx, &admin, "v1")
	assert.NoError(t, err)
}

// --- Create ---

func TestCreate_Defaults(t *testing.T) {
	accts := newMemAccounts()
	a, err := newService(accts, nil, nil).Create(context.Background(), domain.CreateAccountRequest{
		Email:       " New@SmartFix.test ",
		Password:    "secret1",
		DisplayName: "New Person",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@smartfix.test", a.Email)
	assert.Equal(t, domain.RoleViewer, a.Role)
	assert.Equal(t, domain.StatusActive, a.Status)
	assert.False(t, a.TwoFactorEnabled())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("secret1")))
	assert.Contains(t, accts.byID, a.AccountID)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	accts := newMemAccounts()
	accts.createErr = fmt.Errorf("email taken: %w", domain.ErrDuplicateKey)

	_, err := newService(accts, nil, nil).Create(context.Background(), domain.CreateAccountRequest{
		Email: "a@b.test", Password: "secret1", DisplayName: "A",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

// --- Update ---

func TestUpdate_OwnerProfileFields(t *testing.T) {
	accts := newMemAccounts(viewer)
	a, err := newService(accts, nil, nil).Update(context.Background(), &viewer, "v1", domain.UpdateAccountRequest{
		DisplayName: strPtr("Vee Two"),
		Department:  strPtr("Ops"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Vee Two", a.DisplayName)
	assert.Equal(t, "Ops", *a.Profile.Department)
	assert.Equal(t, "v1@smartfix.test", a.Email)
	assert.True(t, a.UpdatedAt.Equal(t0))
}

func TestUpdate_OwnerCannotChangeRole(t *testing.T) {
	accts := newMemAccounts(viewer)
	_, err := newService(accts, nil, nil).Update(context.Background(), &viewer, "v1", domain.UpdateAccountRequest{
		Role: strPtr(domain.RoleAdmin),
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.RoleViewer, accts.byID["v1"].Role)
}

func TestUpdate_OtherAccountForbidden(t *testing.T) {
	other := domain.Account{AccountID: "v2", Role: domain.RoleViewer, Status: domain.StatusActive}
	_, err := newService(newMemAccounts(viewer, other), nil, nil).Update(context.Background(), &viewer, "v2", domain.UpdateAccountRequest{
		DisplayName: strPtr("hijack"),
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdate_AdminBlockRevokesSessions(t *testing.T) {
	accts := newMemAccounts(admin, viewer)
	ss := &mockSessionStore{}
	ss.On("DisableByAccount", mock.Anything, "v1").Return(nil)

	a, err := newService(accts, ss, nil).Update(context.Background(), &admin, "v1", domain.UpdateAccountRequest{
		Status: strPtr(domain.StatusSuspended),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuspended, a.Status)
	ss.AssertExpectations(t)
}

func TestUpdate_AdminCannotDemoteSelf(t *testing.T) {
	_, err := newService(newMemAccounts(admin), nil, nil).Update(context.Background(), &admin, "adm", domain.UpdateAccountRequest{
		Role: strPtr(domain.RoleViewer),
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestUpdate_EmptyDisplayName(t *testing.T) {
	_, err := newService(newMemAccounts(viewer), nil, nil).Update(context.Background(), &viewer, "v1", domain.UpdateAccountRequest{
		DisplayName: strPtr("   "),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// --- Delete ---

func TestDelete_BlocksAndRevokes(t *testing.T) {
	accts := newMemAccounts(admin, viewer)
	ss := &mockSessionStore{}
	ss.On("DisableByAccount", mock.Anything, "v1").Return(fmt.Errorf("partial"))

	require.NoError(t, newService(accts, ss, nil).Delete(context.Background(), &admin, "v1"))
	assert.Equal(t, domain.StatusBlocked, accts.byID["v1"].Status)
	assert.Contains(t, accts.byID, "v1")
}

func TestDelete_Self(t *testing.T) {
	err := newService(newMemAccounts(admin), nil, nil).Delete(context.Background(), &admin, "adm")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestDelete_NotAdmin(t *testing.T) {
	support := domain.Account{AccountID: "sup", Role: domain.RoleSupport}
	err := newService(newMemAccounts(viewer), nil, nil).Delete(context.Background(), &support, "v1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// --- ChangePassword ---

func TestChangePassword(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("old-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	v := viewer
	v.PasswordHash = string(h)
	accts := newMemAccounts(v)
	ss := &mockSessionStore{}
	ss.On("DisableByAccountExcept", mock.Anything, "v1", "s-current").Return(nil).Once()
	svc := newService(accts, ss, nil)

	err = svc.ChangePassword(context.Background(), "v1", "s-current", ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-pass"})
	assert.ErrorIs(t, err, domain.ErrReauthenticationRequired)
	ss.AssertNotCalled(t, "DisableByAccountExcept", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, svc.ChangePassword(context.Background(), "v1", "s-current", ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(accts.byID["v1"].PasswordHash), []byte("new-pass")))
	ss.AssertExpectations(t)
}

func TestChangePassword_RevocationFailureStillSucceeds(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("old-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	v := viewer
	v.PasswordHash = string(h)
	accts := newMemAccounts(v)
	ss := &mockSessionStore{}
	ss.On("DisableByAccountExcept", mock.Anything, "v1", "s-current").Return(fmt.Errorf("throttled"))

	err = newService(accts, ss, nil).ChangePassword(context.Background(), "v1", "s-current", ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(accts.byID["v1"].PasswordHash), []byte("new-pass")))
}

// --- UploadAvatar ---

func TestUploadAvatar_RejectsNonImage(t *testing.T) {
	_, err := newService(newMemAccounts(viewer), nil, &mockFileStore{}).UploadAvatar(context.Background(), "v1", "cv.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUploadAvatar_ReplacesPrevious(t *testing.T) {
	v := viewer
	v.Profile.Avatar = strPtr("s3://uploads/avatars/v1/old.png")
	accts := newMemAccounts(v)
	fs := &mockFileStore{}
	fs.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "avatars/v1/") && strings.HasSuffix(key, ".png")
	}), mock.Anything, "image/png").Return("s3://uploads/avatars/v1/new.png", nil)
	fs.On("Delete", mock.Anything, "s3://uploads/avatars/v1/old.png").Return(nil)

	a, err := newService(accts, nil, fs).UploadAvatar(context.Background(), "v1", "Me.PNG", "image/png", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, "s3://uploads/avatars/v1/new.png", *a.Profile.Avatar)
	fs.AssertExpectations(t)
}

// --- EnsureAdmin ---

func TestEnsureAdmin_CreatesWhenMissing(t *testing.T) {
	accts := newMemAccounts()
	a, err := newService(accts, nil, nil).EnsureAdmin(context.Background(), "root@smartfix.test", "bootstrap-pw", "Root")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, a.Role)
	assert.Len(t, accts.byID, 1)
}

func TestEnsureAdmin_KeepsExisting(t *testing.T) {
	accts := newMemAccounts(admin)
	a, err := newService(accts, nil, nil).EnsureAdmin(context.Background(), "admin@smartfix.test", "whatever", "Root")
	require.NoError(t, err)
	assert.Equal(t, "adm", a.AccountID)
	assert.Len(t, accts.byID, 1)
}
