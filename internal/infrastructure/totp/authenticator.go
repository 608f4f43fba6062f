// Package totp issues and checks RFC 6238 time-based one-time passwords and
// the single-use backup codes that accompany them.
package totp

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	period = 30
	// skew accepts codes from two steps either side of the current one.
	skew          = 2
	qrSize        = 256
	backupCodeLen = 4 // bytes, rendered as 8 hex characters
)

// Enrollment is what a user needs to add the account to an authenticator app.
type Enrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
}

// Authenticator generates TOTP secrets and validates codes.
type Authenticator struct {
	issuer string
	now    func() time.Time
}

func NewAuthenticator(issuer string) *Authenticator {
	return &Authenticator{issuer: issuer, now: time.Now}
}

// Generate creates a new secret for accountName (the account email) and
// renders its otpauth:// URL as a PNG data URL.
func (a *Authenticator) Generate(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.issuer,
		AccountName: fmt.Sprintf("%s (%s)", a.issuer, accountName),
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return &Enrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate reports whether code is valid for secret at the current time.
func (a *Authenticator) Validate(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, a.now().UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// BackupCodes returns n random 8-character uppercase codes.
func (a *Authenticator) BackupCodes(n int) ([]string, error) {
	codes := make([]string, n)
	buf := make([]byte, backupCodeLen)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(buf))
	}
	return codes, nil
}
