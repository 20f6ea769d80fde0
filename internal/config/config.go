package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverRedis    = "redis"

	NotifierSMTP     = "smtp"
	NotifierRabbitMQ = "rabbitmq"
	NotifierLog      = "log"
)

// SMTP is shared by the API (NOTIFIER=smtp) and the mailer worker.
type SMTP struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" envDefault:"587"`
	Username string        `env:"SMTP_USERNAME"`
	Password string        `env:"SMTP_PASSWORD"`
	From     string        `env:"SMTP_FROM"`
	Insecure bool          `env:"SMTP_INSECURE"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`
}

type Rabbit struct {
	URL      string `env:"RABBIT_URL"`
	Exchange string `env:"RABBIT_EXCHANGE" envDefault:"orgdocs.auth"`
}

type Config struct {
	// App
	Env string `env:"ENV" envDefault:"dev"` // dev / staging / prod

	// HTTP
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"1m"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envSeparator:","`
	MetricsEnabled   bool          `env:"METRICS_ENABLED" envDefault:"true"`

	// Auth / Security
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTIssuer            string        `env:"JWT_ISSUER" envDefault:"auth-service"`
	SessionTokenTTL      time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"1h"`
	OAuthSessionTokenTTL time.Duration `env:"OAUTH_SESSION_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`
	OTPTTL               time.Duration `env:"OTP_TTL" envDefault:"10m"`
	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"10"`
	AllowedEmailDomains  []string      `env:"ALLOWED_EMAIL_DOMAINS" envSeparator:"," envDefault:"student.buksu.edu.ph,buksu.edu.ph"`

	// Rate limits (fixed window, per route and caller)
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMax        int           `env:"RATE_LIMIT_MAX" envDefault:"20"`
	RateLimitVerifyCode int           `env:"RATE_LIMIT_VERIFY_CODE" envDefault:"5"`

	// Credential store
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DBAddr        string `env:"DB_ADDR"`
	DBDebug       bool   `env:"DB_DEBUG"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"orgdocs"`

	// Verification codes
	OTPDriver     string `env:"OTP_DRIVER" envDefault:"redis"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Code delivery
	Notifier string `env:"NOTIFIER" envDefault:"smtp"`
	SMTP     SMTP
	Rabbit   Rabbit

	// Google sign-in; empty client id disables /oauth/login
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	GoogleJWKSURL  string `env:"GOOGLE_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`

	// Seed admin (idempotent, created on startup when both are set)
	SeedAdminEmail    string `env:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `env:"SEED_ADMIN_PASSWORD"`
}

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Load reads an optional .env file, parses the environment and validates the
// result. It fails fast: the service cannot run half-configured.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse is Load without the .env file.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.OTPDriver = strings.ToLower(strings.TrimSpace(c.OTPDriver))
	c.Notifier = strings.ToLower(strings.TrimSpace(c.Notifier))
	c.AllowedEmailDomains = trimAll(c.AllowedEmailDomains)
	c.CORSOrigins = trimAll(c.CORSOrigins)
}

// Validate checks cross-field rules and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	missing := func(key string) { errs = append(errs, fmt.Errorf("missing required env var: %s", key)) }

	if !slices.Contains([]string{"dev", "staging", "prod"}, c.Env) {
		errs = append(errs, fmt.Errorf("ENV must be dev, staging or prod, got %q", c.Env))
	}
	if c.JWTSecret == "" {
		missing("JWT_SECRET")
	} else if !c.IsDev() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes outside dev"))
	}
	if c.BcryptCost < 10 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within 10..31, got %d", c.BcryptCost))
	}

	for key, d := range map[string]time.Duration{
		"SESSION_TOKEN_TTL":       c.SessionTokenTTL,
		"OAUTH_SESSION_TOKEN_TTL": c.OAuthSessionTokenTTL,
		"RESET_TOKEN_TTL":         c.ResetTokenTTL,
		"OTP_TTL":                 c.OTPTTL,
		"RATE_LIMIT_WINDOW":       c.RateLimitWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBAddr == "" {
			missing("DB_ADDR")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			missing("MONGO_URI")
		}
	case DriverMemory:
		if !c.IsDev() {
			errs = append(errs, errors.New("STORE_DRIVER=memory is only allowed in dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.OTPDriver {
	case DriverRedis:
		if c.RedisAddr == "" {
			missing("REDIS_ADDR")
		}
	case DriverMongo:
		if c.MongoURI == "" && c.StoreDriver != DriverMongo {
			missing("MONGO_URI")
		}
	case DriverMemory:
		if !c.IsDev() {
			errs = append(errs, errors.New("OTP_DRIVER=memory is only allowed in dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OTP_DRIVER %q", c.OTPDriver))
	}

	switch c.Notifier {
	case NotifierSMTP:
		errs = append(errs, c.SMTP.validate()...)
	case NotifierRabbitMQ:
		if c.Rabbit.URL == "" {
			missing("RABBIT_URL")
		}
	case NotifierLog:
		if !c.IsDev() {
			errs = append(errs, errors.New("NOTIFIER=log is only allowed in dev"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}

	if (c.SeedAdminEmail == "") != (c.SeedAdminPassword == "") {
		errs = append(errs, errors.New("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

func (s SMTP) validate() []error {
	var errs []error
	if s.Host == "" {
		errs = append(errs, errors.New("missing required env var: SMTP_HOST"))
	}
	if s.From == "" {
		errs = append(errs, errors.New("missing required env var: SMTP_FROM"))
	}
	return errs
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
