package twofactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/infrastructure/totp"
	"github.com/smartfix-api/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

// Verification methods reported by Verify.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

type SetupResult struct {
	Secret      string   `json:"secret"`
	QRCode      string   `json:"qrCode"`
	OTPAuthURL  string   `json:"otpauthUrl"`
	BackupCodes []string `json:"backupCodes"`
}

type VerifyRequest struct {
	Token      string `json:"token"`
	BackupCode string `json:"backup_code"`
}

type VerifyResult struct {
	Method               string `json:"method"`
	RemainingBackupCodes int    `json:"remainingBackupCodes"`
}

type Service interface {
	Setup(ctx context.Context, accountID string, sessionVerified bool) (*SetupResult, error)
	Enable(ctx context.Context, accountID, sessionID, token string) error
	Disable(ctx context.Context, accountID, password string) error
	Verify(ctx context.Context, accountID, sessionID string, req VerifyRequest) (*VerifyResult, error)
	RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error)
	Status(ctx context.Context, accountID string) (domain.TwoFactorStatus, error)
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Mutate(ctx context.Context, accountID string, fn func(*domain.Account) error) (*domain.Account, error)
}

type sessionStore interface {
	MarkTwoFactorVerified(ctx context.Context, sessionID string, at time.Time) error
}

type authenticator interface {
	Generate(accountName string) (*totp.Enrollment, error)
	Validate(secret, code string) bool
	BackupCodes(n int) ([]string, error)
}

type service struct {
	accounts accountStore
	sessions sessionStore
	auth     authenticator
	now      func() time.Time
	log      *logger.Logger
}

type ServiceDeps struct {
	AccountRepo   accountStore
	SessionRepo   sessionStore
	Authenticator authenticator
	Now           func() time.Time
	Logger        *logger.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts: deps.AccountRepo,
		sessions: deps.SessionRepo,
		auth:     deps.Authenticator,
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

// Setup starts (or restarts) enrollment. Any previous secret and backup codes
// are replaced and 2FA stays off until Enable succeeds. Re-enrolling an
// account that already has 2FA on requires a session that passed the second
// factor.
func (s *service) Setup(ctx context.Context, accountID string, sessionVerified bool) (*SetupResult, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.TwoFactorEnabled() && !sessionVerified {
		return nil, fmt.Errorf("setup 2fa: %w", domain.ErrTwoFactorRequired)
	}
	enrollment, err := s.auth.Generate(a.Email)
	if err != nil {
		return nil, err
	}
	codes, err := s.auth.BackupCodes(domain.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	_, err = s.accounts.Mutate(ctx, accountID, func(cur *domain.Account) error {
		if cur.TwoFactorEnabled() && !sessionVerified {
			return domain.ErrTwoFactorRequired
		}
		domain.BeginTwoFactorEnrollment(cur, enrollment.Secret, codes)
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store 2fa enrollment: %w", err)
	}
	return &SetupResult{
		Secret:      enrollment.Secret,
		QRCode:      enrollment.QRCode,
		OTPAuthURL:  enrollment.OTPAuthURL,
		BackupCodes: codes,
	}, nil
}

// Enable confirms enrollment with a code from the pending secret. The calling
// session counts as verified afterwards.
func (s *service) Enable(ctx context.Context, accountID, sessionID, token string) error {
	now := s.now().UTC()
	_, err := s.accounts.Mutate(ctx, accountID, func(cur *domain.Account) error {
		if cur.TwoFactor == nil || cur.TwoFactor.Secret == "" {
			return domain.ErrTwoFactorSetupMissing
		}
		if !s.auth.Validate(cur.TwoFactor.Secret, token) {
			return domain.ErrInvalidVerificationCode
		}
		if err := domain.EnableTwoFactor(cur); err != nil {
			return err
		}
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("enable 2fa: %w", err)
	}
	s.log.Info().Str("account_id", accountID).Msg("2fa enabled")
	return s.markVerified(ctx, sessionID, now)
}

// Disable turns 2FA off after the caller proves the password again.
func (s *service) Disable(ctx context.Context, accountID, password string) error {
	now := s.now().UTC()
	_, err := s.accounts.Mutate(ctx, accountID, func(cur *domain.Account) error {
		if !passwordMatches(cur, password) {
			return domain.ErrReauthenticationRequired
		}
		domain.DisableTwoFactor(cur)
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return fmt.Errorf("disable 2fa: %w", err)
	}
	s.log.Info().Str("account_id", accountID).Msg("2fa disabled")
	return nil
}

// Verify accepts either a TOTP code or a backup code. A backup code is spent
// on success.
func (s *service) Verify(ctx context.Context, accountID, sessionID string, req VerifyRequest) (*VerifyResult, error) {
	token := strings.TrimSpace(req.Token)
	backup := strings.TrimSpace(req.BackupCode)
	if token == "" && backup == "" {
		return nil, fmt.Errorf("token or backup_code is required: %w", domain.ErrValidation)
	}
	now := s.now().UTC()

	var result *VerifyResult
	if token != "" {
		a, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if !a.TwoFactorEnabled() {
			return nil, fmt.Errorf("verify 2fa: %w", domain.ErrTwoFactorNotEnabled)
		}
		if !s.auth.Validate(a.TwoFactor.Secret, token) {
			return nil, fmt.Errorf("verify 2fa: %w", domain.ErrInvalidVerificationCode)
		}
		result = &VerifyResult{Method: MethodTOTP, RemainingBackupCodes: len(a.TwoFactor.BackupCodes)}
	} else {
		a, err := s.accounts.Mutate(ctx, accountID, func(cur *domain.Account) error {
			if err := domain.ConsumeBackupCode(cur, backup); err != nil {
				return err
			}
			cur.UpdatedAt = now
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("verify 2fa: %w", err)
		}
		result = &VerifyResult{Method: MethodBackupCode, RemainingBackupCodes: len(a.TwoFactor.BackupCodes)}
		s.log.Info().Str("account_id", accountID).Int("remaining", result.RemainingBackupCodes).Msg("backup code used")
	}

	if err := s.markVerified(ctx, sessionID, now); err != nil {
		return nil, err
	}
	return result, nil
}

// RegenerateBackupCodes replaces the whole set after a password re-proof.
func (s *service) RegenerateBackupCodes(ctx context.Context, accountID, password string) ([]string, error) {
	codes, err := s.auth.BackupCodes(domain.BackupCodeCount)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	_, err = s.accounts.Mutate(ctx, accountID, func(cur *domain.Account) error {
		if !passwordMatches(cur, password) {
			return domain.ErrReauthenticationRequired
		}
		if err := domain.ReplaceBackupCodes(cur, codes); err != nil {
			return err
		}
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate backup codes: %w", err)
	}
	return codes, nil
}

func (s *service) Status(ctx context.Context, accountID string) (domain.TwoFactorStatus, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.TwoFactorStatus{}, err
	}
	return a.TwoFactorStatus(), nil
}

func (s *service) markVerified(ctx context.Context, sessionID string, at time.Time) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.MarkTwoFactorVerified(ctx, sessionID, at); err != nil {
		return fmt.Errorf("mark session verified: %w", err)
	}
	return nil
}

func passwordMatches(a *domain.Account, password string) bool {
	return password != "" && bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}
