package domain

import "strings"

// BackupCodeCount is the number of single-use codes issued per enrollment.
const BackupCodeCount = 10

// TwoFactorStatus is the client-facing summary of an account's enrollment.
type TwoFactorStatus struct {
	Enabled          bool `json:"enabled"`
	HasBackupCodes   bool `json:"hasBackupCodes"`
	BackupCodesCount int  `json:"backupCodesCount"`
}

// TwoFactorStatus summarises the 2FA state of a.
func (a *Account) TwoFactorStatus() TwoFactorStatus {
	if a.TwoFactor == nil {
		return TwoFactorStatus{}
	}
	n := len(a.TwoFactor.BackupCodes)
	return TwoFactorStatus{Enabled: a.TwoFactor.Enabled, HasBackupCodes: n > 0, BackupCodesCount: n}
}

// BeginTwoFactorEnrollment moves the account to pending verification,
// overwriting any previous secret and backup codes.
func BeginTwoFactorEnrollment(a *Account, secret string, backupCodes []string) {
	a.TwoFactor = &TwoFactor{Secret: secret, Enabled: false, BackupCodes: backupCodes}
}

// EnableTwoFactor completes enrollment once the caller has verified a code
// against the pending secret.
func EnableTwoFactor(a *Account) error {
	if a.TwoFactor == nil || a.TwoFactor.Secret == "" {
		return ErrTwoFactorSetupMissing
	}
	a.TwoFactor.Enabled = true
	return nil
}

// DisableTwoFactor drops the secret and every backup code.
func DisableTwoFactor(a *Account) {
	a.TwoFactor = &TwoFactor{BackupCodes: []string{}}
}

// ConsumeBackupCode removes code from the account's set. The set is left
// untouched when nothing matches.
func ConsumeBackupCode(a *Account, code string) error {
	if !a.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	codes := a.TwoFactor.BackupCodes
	for i, c := range codes {
		if c == code {
			a.TwoFactor.BackupCodes = append(codes[:i:i], codes[i+1:]...)
			return nil
		}
	}
	return ErrInvalidBackupCode
}

// ReplaceBackupCodes swaps the whole set; old codes become invalid.
func ReplaceBackupCodes(a *Account, backupCodes []string) error {
	if !a.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}
	a.TwoFactor.BackupCodes = backupCodes
	return nil
}
