package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string         `env:"APP_PORT" envDefault:"3000"`
	AppEnv         string         `env:"APP_ENV" envDefault:"development"`
	AWSRegion      string         `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string         `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string         `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string         `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables   `envPrefix:"DYNAMO_TABLE_"`
	S3BucketName   string         `env:"S3_BUCKET_NAME" envDefault:"smartfix-uploads"`
	SNSTopicARN    string         `env:"SNS_TOPIC_ARN"` // empty disables the SNS mirror
	SNSRegion      string         `env:"SNS_REGION" envDefault:"us-east-1"`
	JWTPrivateKey  string         `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKey   string         `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry      time.Duration  `env:"JWT_EXPIRY" envDefault:"24h"`
	SMTP           SMTP           `envPrefix:"SMTP_"`
	AllowedOrigins []string       `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	TrustedProxies []netip.Prefix `env:"TRUSTED_PROXIES" envSeparator:","` // CIDRs whose X-Forwarded-For is honoured
	Security       Security
	SweepInterval  time.Duration  `env:"SWEEP_INTERVAL" envDefault:"1m"`
	Bootstrap      Bootstrap      `envPrefix:"BOOTSTRAP_ADMIN_"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string `env:"ACCOUNTS" envDefault:"accounts"`
	AccountEmails string `env:"ACCOUNT_EMAILS" envDefault:"account_emails"`
	Sessions      string `env:"SESSIONS" envDefault:"sessions"`
	Notifications string `env:"NOTIFICATIONS" envDefault:"notifications"`
	Jobs          string `env:"JOBS" envDefault:"jobs"`
	Disputes      string `env:"DISPUTES" envDefault:"disputes"`
}

type SMTP struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"1025"`
	From     string `env:"FROM" envDefault:"security@smartfix.local"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Security tunes the lockout state machine and 2FA.
type Security struct {
	MaxFailedAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockDuration      time.Duration `env:"LOCKOUT_DURATION" envDefault:"2h"`
	TOTPIssuer        string        `env:"TOTP_ISSUER" envDefault:"SmartFix"`
	WriteRetries      uint64        `env:"OPTIMISTIC_WRITE_RETRIES" envDefault:"5"`
}

// Bootstrap seeds a first admin when both fields are set.
type Bootstrap struct {
	Email       string `env:"EMAIL"`
	Password    string `env:"PASSWORD"`
	DisplayName string `env:"NAME" envDefault:"Administrator"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Security.MaxFailedAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be positive, got %d", c.Security.MaxFailedAttempts)
	}
	if c.Security.LockDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive, got %s", c.Security.LockDuration)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}
