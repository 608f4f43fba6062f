package domain

import "time"

// Session is one login. TwoFactorVerified is set once the holder passes the
// second factor; accounts with 2FA enabled cannot use an unverified session.
type Session struct {
	SessionID           string     `json:"id" dynamodbav:"session_id"`
	AccountID           string     `json:"account_id" dynamodbav:"account_id"`
	Enable              bool       `json:"enable" dynamodbav:"enable"`
	TwoFactorVerified   bool       `json:"two_factor_verified" dynamodbav:"two_factor_verified"`
	TwoFactorVerifiedAt *time.Time `json:"two_factor_verified_at,omitempty" dynamodbav:"two_factor_verified_at"`
	CreatedAt           time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt           time.Time  `json:"updated" dynamodbav:"updated_at"`
	Account             *Account   `json:"account,omitempty" dynamodbav:"-"`
}
