package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/infrastructure/smtp"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Bearer            string
	RequiresTwoFactor bool
	Session           *domain.Session
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Mutate(ctx context.Context, accountID string, fn func(*domain.Account) error) (*domain.Account, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

type jwtSigner interface {
	Sign(accountID, role, sessionID string) (string, error)
}

type service struct {
	accounts accountStore
	sessions sessionStore
	jwt      jwtSigner
	mailer   smtp.Mailer
	policy   domain.LockoutPolicy
	now      func() time.Time
	log      *logger.Logger
}

type ServiceDeps struct {
	AccountRepo accountStore
	SessionRepo sessionStore
	JWTProvider jwtSigner
	Mailer      smtp.Mailer // optional; lockout alerts are skipped when nil
	Policy      domain.LockoutPolicy
	Now         func() time.Time
	Logger      *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts: deps.AccountRepo,
		sessions: deps.SessionRepo,
		jwt:      deps.JWTProvider,
		mailer:   deps.Mailer,
		policy:   deps.Policy,
		now:      deps.Now,
		log:      deps.Logger,
	}
	if s.policy.MaxAttempts == 0 {
		s.policy = domain.DefaultLockoutPolicy()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Login checks, in order: lock, status, password. Every password mismatch is
// recorded against the account before the error is returned.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	now := s.now().UTC()
	a, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredential)
		}
		return nil, err
	}
	if domain.IsLocked(now, a.LockExpiry) {
		return nil, fmt.Errorf("login: %w", domain.ErrAccountLocked)
	}
	if a.Status != domain.StatusActive {
		return nil, fmt.Errorf("login: %w", domain.ErrAccountInactive)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)) != nil {
		if err := s.recordFailure(ctx, a.AccountID, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredential)
	}

	a, err = s.accounts.Mutate(ctx, a.AccountID, func(cur *domain.Account) error {
		domain.RecordSuccessfulLogin(cur, now)
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	sess := &domain.Session{
		SessionID: id.New(),
		AccountID: a.AccountID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.jwt.Sign(a.AccountID, a.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	sess.Account = a
	return &LoginResult{Bearer: bearer, RequiresTwoFactor: a.TwoFactorEnabled(), Session: sess}, nil
}

func (s *service) recordFailure(ctx context.Context, accountID string, now time.Time) error {
	var lockedNow bool
	a, err := s.accounts.Mutate(ctx, accountID, func(cur *domain.Account) error {
		lockedNow = s.policy.RecordFailedAttempt(cur, now)
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if lockedNow {
		s.log.Warn().Str("account_id", accountID).Time("lock_expiry", *a.LockExpiry).Msg("account locked")
		s.sendLockoutAlert(a)
	}
	return nil
}

func (s *service) sendLockoutAlert(a *domain.Account) {
	if s.mailer == nil {
		return
	}
	subject, body := smtp.LockoutAlert(a.DisplayName, *a.LockExpiry)
	if err := s.mailer.SendEmail(a.Email, subject, body); err != nil {
		s.log.Warn().Err(err).Str("account_id", a.AccountID).Msg("lockout alert not sent")
	}
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Disable(ctx, sessionID)
}

// GetCurrent returns an enabled session with its account attached.
func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	a, err := s.accounts.Get(ctx, sess.AccountID)
	if err != nil {
		return nil, err
	}
	sess.Account = a
	return sess, nil
}
