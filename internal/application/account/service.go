package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

type Service interface {
	List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)
	Get(ctx context.Context, actor *domain.Account, accountID string) (*domain.Account, error)
	Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error)
	Update(ctx context.Context, actor *domain.Account, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error)
	Delete(ctx context.Context, actor *domain.Account, accountID string) error
	ChangePassword(ctx context.Context, accountID, sessionID string, req ChangePasswordRequest) error
	UploadAvatar(ctx context.Context, accountID, filename, contentType string, r io.Reader) (*domain.Account, error)
	EnsureAdmin(ctx context.Context, email, password, displayName string) (*domain.Account, error)
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Mutate(ctx context.Context, accountID string, fn func(*domain.Account) error) (*domain.Account, error)
	List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error)
}

type sessionStore interface {
	DisableByAccount(ctx context.Context, accountID string) error
	DisableByAccountExcept(ctx context.Context, accountID, keepSessionID string) error
}

type fileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

type service struct {
	repo     accountStore
	sessions sessionStore
	files    fileStore
	now      func() time.Time
	log      *logger.Logger
}

type ServiceDeps struct {
	AccountRepo accountStore
	SessionRepo sessionStore
	FileStore   fileStore
	Now         func() time.Time
	Logger      *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.AccountRepo,
		sessions: deps.SessionRepo,
		files:    deps.FileStore,
		now:      deps.Now,
		log:      deps.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

func (s *service) List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Get(ctx context.Context, actor *domain.Account, accountID string) (*domain.Account, error) {
	if !domain.CanPerform(actor, domain.ActionViewAccount, accountID) {
		return nil, fmt.Errorf("view account %s: %w", accountID, domain.ErrForbidden)
	}
	return s.repo.Get(ctx, accountID)
}

func (s *service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = domain.RoleViewer
	}
	now := s.now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.StatusActive,
		Profile:      domain.Profile{Permissions: []string{}},
		TwoFactor:    &domain.TwoFactor{BackupCodes: []string{}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Profile != nil {
		a.Profile.Department = req.Profile.Department
		a.Profile.Bio = req.Profile.Bio
		if req.Profile.Permissions != nil {
			a.Profile.Permissions = req.Profile.Permissions
		}
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info().Str("account_id", a.AccountID).Str("role", a.Role).Msg("account created")
	return a, nil
}

// Update applies a partial update. Profile fields are open to the owner;
// role, status and permissions need the manage permission. Email never changes.
func (s *service) Update(ctx context.Context, actor *domain.Account, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error) {
	if !domain.CanPerform(actor, domain.ActionUpdateAccount, accountID) {
		return nil, fmt.Errorf("update account %s: %w", accountID, domain.ErrForbidden)
	}
	privileged := req.Role != nil || req.Status != nil || req.Permissions != nil
	if privileged && !domain.CanPerform(actor, domain.ActionManageAccount, accountID) {
		return nil, fmt.Errorf("role, status and permissions are admin-only: %w", domain.ErrForbidden)
	}
	if privileged && actor.AccountID == accountID &&
		((req.Role != nil && *req.Role != actor.Role) || (req.Status != nil && *req.Status != domain.StatusActive)) {
		return nil, fmt.Errorf("cannot change own role or status: %w", domain.ErrBadRequest)
	}

	now := s.now().UTC()
	var deactivated bool
	a, err := s.repo.Mutate(ctx, accountID, func(cur *domain.Account) error {
		wasActive := cur.Status == domain.StatusActive
		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if name == "" {
				return fmt.Errorf("display_name cannot be empty: %w", domain.ErrValidation)
			}
			cur.DisplayName = name
		}
		if req.PhoneNumber != nil {
			cur.PhoneNumber = req.PhoneNumber
		}
		if req.Department != nil {
			cur.Profile.Department = req.Department
		}
		if req.Bio != nil {
			cur.Profile.Bio = req.Bio
		}
		if req.Role != nil {
			cur.Role = *req.Role
		}
		if req.Status != nil {
			cur.Status = *req.Status
		}
		if req.Permissions != nil {
			cur.Profile.Permissions = *req.Permissions
		}
		cur.UpdatedAt = now
		deactivated = wasActive && cur.Status != domain.StatusActive
		return nil
	})
	if err != nil {
		return nil, err
	}
	if deactivated {
		s.revokeSessions(ctx, accountID)
	}
	return a, nil
}

// Delete blocks the account; records are never removed.
func (s *service) Delete(ctx context.Context, actor *domain.Account, accountID string) error {
	if !domain.CanPerform(actor, domain.ActionDeleteAccount, accountID) {
		return fmt.Errorf("delete account %s: %w", accountID, domain.ErrForbidden)
	}
	if actor.AccountID == accountID {
		return fmt.Errorf("cannot delete own account: %w", domain.ErrBadRequest)
	}
	now := s.now().UTC()
	_, err := s.repo.Mutate(ctx, accountID, func(cur *domain.Account) error {
		cur.Status = domain.StatusBlocked
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	s.revokeSessions(ctx, accountID)
	return nil
}

func (s *service) revokeSessions(ctx context.Context, accountID string) {
	if err := s.sessions.DisableByAccount(ctx, accountID); err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("failed to revoke sessions")
	}
}

// ChangePassword replaces the password after checking the current one. Every
// other session of the account is signed out; sessionID stays valid.
func (s *service) ChangePassword(ctx context.Context, accountID, sessionID string, req ChangePasswordRequest) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	_, err = s.repo.Mutate(ctx, accountID, func(cur *domain.Account) error {
		if bcrypt.CompareHashAndPassword([]byte(cur.PasswordHash), []byte(req.CurrentPassword)) != nil {
			return fmt.Errorf("current password is incorrect: %w", domain.ErrReauthenticationRequired)
		}
		cur.PasswordHash = string(hash)
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.sessions.DisableByAccountExcept(ctx, accountID, sessionID); err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("failed to revoke other sessions")
	}
	return nil
}

// UploadAvatar stores the image and points the profile at it. The previous
// avatar object is removed afterwards.
func (s *service) UploadAvatar(ctx context.Context, accountID, filename, contentType string, r io.Reader) (*domain.Account, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("avatar must be an image: %w", domain.ErrValidation)
	}
	key := fmt.Sprintf("avatars/%s/%s%s", accountID, id.New(), strings.ToLower(path.Ext(filename)))
	url, err := s.files.Upload(ctx, key, r, contentType)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var previous *string
	a, err := s.repo.Mutate(ctx, accountID, func(cur *domain.Account) error {
		previous = cur.Profile.Avatar
		cur.Profile.Avatar = &url
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if previous != nil && *previous != url {
		if err := s.files.Delete(ctx, *previous); err != nil {
			s.log.Warn().Err(err).Str("account_id", accountID).Msg("failed to delete previous avatar")
		}
	}
	return a, nil
}

// EnsureAdmin creates an active admin with the given credentials unless an
// account with that email already exists.
func (s *service) EnsureAdmin(ctx context.Context, email, password, displayName string) (*domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	a, err := s.Create(ctx, domain.CreateAccountRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
		Role:        domain.RoleAdmin,
	})
	if errors.Is(err, domain.ErrDuplicateKey) {
		return s.repo.GetByEmail(ctx, email)
	}
	return a, err
}
