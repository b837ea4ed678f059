// Package config holds environment-driven configuration for the verification
// service. Structs carry cleanenv tags and are loaded in cmd/ entry points.
package config

import (
	"fmt"
	"time"

	"github.com/resumeworks/resume-verify/pkg/tokencodec"
)

// AppConfig holds process-level settings.
type AppConfig struct {
	Env     string `env:"APP_ENV" env-default:"development"`
	Port    uint16 `env:"PORT" env-default:"4000"`
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:4000"`
}

// DbConfig holds PostgreSQL connection settings.
type DbConfig struct {
	Host     string `env:"PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"PG_PORT" env-default:"5432"`
	Database string `env:"PG_DATABASE" env-default:"resume_verify_db"`
	User     string `env:"PG_USER" env-default:"resume_verify"`
	Password string `env:"PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL builds the pgx connection string.
func (d DbConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// IdentityConfig holds the identity provider's bearer-token settings.
type IdentityConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

// VerifyConfig holds verification token settings.
type VerifyConfig struct {
	// SigningSecret is the explicit token signing secret. When empty, a key
	// is derived from RootSecret; production requires an explicit secret.
	SigningSecret string        `env:"VERIFY_SIGNING_SECRET" env-default:""`
	RootSecret    string        `env:"VERIFY_ROOT_SECRET" env-default:""`
	TokenTTL      time.Duration `env:"VERIFY_TOKEN_TTL" env-default:"24h"`
	MaxAttempts   int           `env:"VERIFY_MAX_ATTEMPTS" env-default:"5"`
	ResendLimit   int           `env:"RESEND_LIMIT" env-default:"3"`
	ResendWindow  time.Duration `env:"RESEND_WINDOW" env-default:"1h"`
	SweepInterval time.Duration `env:"VERIFY_SWEEP_INTERVAL" env-default:"1h"`
	SuccessURL    string        `env:"VERIFY_SUCCESS_URL" env-default:"http://localhost:5173/verify/success"`
	FailureURL    string        `env:"VERIFY_FAILURE_URL" env-default:"http://localhost:5173/verify/failure"`
	Issuer        string        `env:"VERIFY_ISSUER" env-default:"resume-verify"`
	Audience      string        `env:"VERIFY_AUDIENCE" env-default:"resume-verify"`
}

// RateLimitConfig holds per-IP limits for public endpoints.
type RateLimitConfig struct {
	PerIPMax    int           `env:"RATELIMIT_PER_IP_MAX" env-default:"60"`
	PerIPWindow time.Duration `env:"RATELIMIT_PER_IP_WINDOW" env-default:"1m"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// GateConfig holds gate settings. Bypass is only honored by the dev binary;
// the production binary hard-fails when it is set.
type GateConfig struct {
	Bypass bool `env:"GATE_BYPASS" env-default:"false"`
}

// Config aggregates all settings.
type Config struct {
	App       AppConfig
	Db        DbConfig
	Identity  IdentityConfig
	Verify    VerifyConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Gate      GateConfig
}

// IsProduction reports whether the environment marker indicates production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Validate rejects configurations that must never reach production.
func (c *Config) Validate() error {
	if c.Verify.SigningSecret == "" && c.Verify.RootSecret == "" {
		return fmt.Errorf("either VERIFY_SIGNING_SECRET or VERIFY_ROOT_SECRET must be set")
	}

	if c.IsProduction() {
		if c.Gate.Bypass {
			return fmt.Errorf("GATE_BYPASS must not be enabled when APP_ENV=production")
		}
		if c.Verify.SigningSecret == "" {
			// A derived key changes whenever the root secret rotates,
			// invalidating all outstanding tokens.
			return fmt.Errorf("VERIFY_SIGNING_SECRET must be set explicitly when APP_ENV=production")
		}
	}

	return nil
}

// SigningKey returns the token signing secret, deriving one from the root
// secret when no explicit secret is configured.
func (c *Config) SigningKey() ([]byte, error) {
	if c.Verify.SigningSecret != "" {
		return []byte(c.Verify.SigningSecret), nil
	}
	return tokencodec.DeriveSecret(c.Verify.RootSecret)
}
