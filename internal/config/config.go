// Package config loads runtime configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName        = "AgroLens"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	// MaxProofTTL bounds how long a verification proof may stay redeemable.
	MaxProofTTL = time.Hour

	minSecretLength = 32
	devSecret       = "agrolens-development-secret-change-me!!"
)

// Config captures application runtime configuration.
type Config struct {
	AppName        string        `mapstructure:"APP_NAME"`
	AppEnv         string        `mapstructure:"APP_ENV"`
	Port           string        `mapstructure:"PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	ShutdownPeriod time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	// AuthSecret signs both verification proofs and session credentials.
	// Rotating it invalidates every outstanding session.
	AuthSecret        string        `mapstructure:"AUTH_SECRET"`
	ProofTTL          time.Duration `mapstructure:"PROOF_TTL"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	SessionCookieName string        `mapstructure:"SESSION_COOKIE_NAME"`
	CookieSecure      bool          `mapstructure:"COOKIE_SECURE"`
	BcryptCost        int           `mapstructure:"BCRYPT_COST"`
	PasswordMinLength int           `mapstructure:"PASSWORD_MIN_LENGTH"`
	DefaultCountry    string        `mapstructure:"DEFAULT_COUNTRY_CODE"`
	LoginRatePerMin   int           `mapstructure:"LOGIN_RATE_PER_MIN"`

	// OTPProvider selects the challenge gateway: "local" keeps codes in Redis
	// and delivers them through the notifier, "http" calls a hosted verify API.
	OTPProvider    string        `mapstructure:"OTP_PROVIDER"`
	OTPTTL         time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	OTPHTTPBaseURL string        `mapstructure:"OTP_HTTP_BASE_URL"`
	OTPHTTPAccount string        `mapstructure:"OTP_HTTP_ACCOUNT"`
	OTPHTTPToken   string        `mapstructure:"OTP_HTTP_TOKEN"`
	OTPHTTPService string        `mapstructure:"OTP_HTTP_SERVICE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
}

// Load reads .env (if present), then the environment, applies defaults and validates the result.
func Load() (Config, error) {
	v := newViper()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.OTPProvider = strings.ToLower(cfg.OTPProvider)

	if cfg.AuthSecret == "" && cfg.IsDev() {
		cfg.AuthSecret = devSecret
	}
	if cfg.IsProduction() {
		cfg.CookieSecure = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabaseURL reads only DATABASE_URL from .env and the environment. The
// migration tool uses it so schema changes do not depend on the Redis or OTP
// settings the API needs.
func LoadDatabaseURL() (string, error) {
	dsn := strings.TrimSpace(newViper().GetString("DATABASE_URL"))
	if dsn == "" {
		return "", errors.New("config: DATABASE_URL must be set")
	}
	return dsn, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("PROOF_TTL", 15*time.Minute)
	v.SetDefault("SESSION_TTL", 7*24*time.Hour)
	v.SetDefault("SESSION_COOKIE_NAME", "session")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("DEFAULT_COUNTRY_CODE", "+91")
	v.SetDefault("LOGIN_RATE_PER_MIN", 5)
	v.SetDefault("OTP_PROVIDER", "local")
	v.SetDefault("OTP_TTL", 10*time.Minute)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_HTTP_BASE_URL", "")
	v.SetDefault("OTP_HTTP_ACCOUNT", "")
	v.SetDefault("OTP_HTTP_TOKEN", "")
	v.SetDefault("OTP_HTTP_SERVICE", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORT must be set")
	}
	if !c.IsDev() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
		}
	}
	if len(c.AuthSecret) < minSecretLength {
		return fmt.Errorf("config: AUTH_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.ProofTTL <= 0 || c.ProofTTL > MaxProofTTL {
		return fmt.Errorf("config: PROOF_TTL must be within (0, %s]", MaxProofTTL)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.PasswordMinLength < 1 {
		return errors.New("config: PASSWORD_MIN_LENGTH must be positive")
	}
	switch c.OTPProvider {
	case "local":
		if c.RedisURL == "" {
			return errors.New("config: OTP_PROVIDER=local requires REDIS_URL")
		}
	case "http":
		if c.OTPHTTPBaseURL == "" || c.OTPHTTPService == "" {
			return errors.New("config: OTP_PROVIDER=http requires OTP_HTTP_BASE_URL and OTP_HTTP_SERVICE")
		}
	default:
		return fmt.Errorf("config: unknown OTP_PROVIDER %q", c.OTPProvider)
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// MailEnabled reports whether SMTP delivery is configured.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}
