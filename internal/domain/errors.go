package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrVersionConflict = errors.New("version conflict")
)

// Account security errors.
var (
	ErrAccountLocked            = errors.New("account is temporarily locked due to too many failed login attempts")
	ErrAccountInactive          = errors.New("account is not active")
	ErrInvalidCredential        = errors.New("invalid credentials")
	ErrTwoFactorSetupMissing    = errors.New("2FA setup not initiated")
	ErrTwoFactorNotEnabled      = errors.New("2FA not enabled")
	ErrTwoFactorRequired        = errors.New("2FA verification required")
	ErrInvalidVerificationCode  = errors.New("invalid verification code")
	ErrInvalidBackupCode        = errors.New("invalid backup code")
	ErrReauthenticationRequired = errors.New("password re-authentication required")
)

// ErrNotificationNotFound wraps ErrNotFound so generic not-found handling still applies.
var ErrNotificationNotFound = notFound("notification not found")

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }
