package domain

import "time"

// Account is a dashboard user. One record per person, never hard-deleted.
type Account struct {
	AccountID      string     `json:"id" dynamodbav:"account_id"`
	Email          string     `json:"email" dynamodbav:"email"`
	DisplayName    string     `json:"display_name" dynamodbav:"display_name"`
	PhoneNumber    *string    `json:"phone_number" dynamodbav:"phone_number"`
	PasswordHash   string     `json:"-" dynamodbav:"password_hash"`
	Role           string     `json:"role" dynamodbav:"role"`
	Status         string     `json:"status" dynamodbav:"status"`
	Profile        Profile    `json:"profile" dynamodbav:"profile"`
	TwoFactor      *TwoFactor `json:"-" dynamodbav:"two_factor"`
	FailedAttempts int        `json:"-" dynamodbav:"failed_attempts"`
	LockExpiry     *time.Time `json:"-" dynamodbav:"lock_expiry"`
	LastLogin      *time.Time `json:"last_login" dynamodbav:"last_login"`
	Version        int64      `json:"-" dynamodbav:"version"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type Profile struct {
	Avatar      *string  `json:"avatar" dynamodbav:"avatar"`
	Department  *string  `json:"department" dynamodbav:"department"`
	Bio         *string  `json:"bio" dynamodbav:"bio"`
	Permissions []string `json:"permissions" dynamodbav:"permissions"`
}

// TwoFactor holds the TOTP enrollment. Secret set with Enabled=false means
// enrollment is pending verification.
type TwoFactor struct {
	Secret      string   `dynamodbav:"secret"`
	Enabled     bool     `dynamodbav:"enabled"`
	BackupCodes []string `dynamodbav:"backup_codes"`
}

// TwoFactorEnabled reports whether the account must pass a second factor.
func (a *Account) TwoFactorEnabled() bool {
	return a.TwoFactor != nil && a.TwoFactor.Enabled
}

// CreateAccountRequest is the admin payload for creating an account.
type CreateAccountRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6,max=72"`
	DisplayName string   `json:"display_name" validate:"required"`
	Role        string   `json:"role" validate:"omitempty,oneof=admin support viewer technician"`
	PhoneNumber *string  `json:"phone_number"`
	Profile     *Profile `json:"profile"`
}

// UpdateAccountRequest is a partial update. Role, Status and Permissions are admin-only.
type UpdateAccountRequest struct {
	DisplayName *string   `json:"display_name"`
	PhoneNumber *string   `json:"phone_number"`
	Role        *string   `json:"role" validate:"omitempty,oneof=admin support viewer technician"`
	Status      *string   `json:"status" validate:"omitempty,oneof=active blocked suspended"`
	Department  *string   `json:"department"`
	Bio         *string   `json:"bio" validate:"omitempty,max=500"`
	Permissions *[]string `json:"permissions"`
}

// AccountFilter narrows the admin account listing.
type AccountFilter struct {
	Search string
	Role   string
	Status string
}
