package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, expiry time.Duration) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProviderWithKey(key, &key.PublicKey, expiry)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	p := newTestProvider(t, time.Hour)

	tok, err := p.Sign("acc-1", "admin", "sess-1")
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "acc-1", claims.Subject)
}

func TestVerify_Expired(t *testing.T) {
	p := newTestProvider(t, time.Minute)
	p.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, err := p.Sign("acc-1", "viewer", "sess-1")
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_ForeignKey(t *testing.T) {
	signer := newTestProvider(t, time.Hour)
	verifier := newTestProvider(t, time.Hour)

	tok, err := signer.Sign("acc-1", "viewer", "sess-1")
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Error(t, err)
}

func TestVerify_RejectsHMAC(t *testing.T) {
	p := newTestProvider(t, time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{AccountID: "acc-1"})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.Error(t, err)
}
