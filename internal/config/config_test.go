package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "accounts", cfg.DynamoTables.Accounts)
	assert.Equal(t, "notifications", cfg.DynamoTables.Notifications)
	assert.Equal(t, "jobs", cfg.DynamoTables.Jobs)
	assert.Equal(t, "disputes", cfg.DynamoTables.Disputes)
	assert.Equal(t, 5, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 2*time.Hour, cfg.Security.LockDuration)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DYNAMO_TABLE_ACCOUNTS", "acc_test")
	t.Setenv("LOCKOUT_DURATION", "30m")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("SMTP_HOST", "mail.test")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,172.16.0.0/12")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "acc_test", cfg.DynamoTables.Accounts)
	assert.Equal(t, 30*time.Minute, cfg.Security.LockDuration)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "mail.test", cfg.SMTP.Host)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("172.16.0.0/12")}, cfg.TrustedProxies)
}

func TestLoad_BadTrustedProxy(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "not-a-cidr")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveLockout(t *testing.T) {
	t.Setenv("LOCKOUT_MAX_ATTEMPTS", "0")
	_, err := Load()
	assert.ErrorContains(t, err, "LOCKOUT_MAX_ATTEMPTS")
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
