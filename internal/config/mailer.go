package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MailerConfig configures cmd/mailer, which drains code-issued events from
// RabbitMQ and delivers them over SMTP.
type MailerConfig struct {
	Env    string `env:"ENV" envDefault:"dev"`
	Rabbit Rabbit
	SMTP   SMTP

	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"10m"`
	Queue       string        `env:"MAILER_QUEUE" envDefault:"auth-mailer.codes"`
	Prefetch    int           `env:"MAILER_PREFETCH" envDefault:"10"`
	MaxAttempts int           `env:"MAILER_MAX_ATTEMPTS" envDefault:"4"`
	MetricsAddr string        `env:"MAILER_METRICS_ADDR" envDefault:":9091"`
}

func LoadMailer() (*MailerConfig, error) {
	_ = godotenv.Load()

	cfg := &MailerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	errs := cfg.SMTP.validate()
	if cfg.Rabbit.URL == "" {
		errs = append(errs, errors.New("missing required env var: RABBIT_URL"))
	}
	if cfg.Queue == "" {
		errs = append(errs, errors.New("missing required env var: MAILER_QUEUE"))
	}
	if cfg.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MAILER_MAX_ATTEMPTS must be positive, got %d", cfg.MaxAttempts))
	}
	if cfg.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}
