package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/baechuer/orgdocs/services/auth-service/internal/config"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/email"
	rabbitmq_pub "github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

// Worker is the part of the consumer the mailer process drives.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Mailer delivers codes published with NOTIFIER=rabbitmq.
type Mailer struct {
	worker Worker
	admin  *http.Server
	lg     zerolog.Logger
}

func NewMailer(cfg *config.MailerConfig) *Mailer {
	sender := email.NewSMTPNotifier(SMTPConfig(cfg.SMTP, cfg.OTPTTL), logger.Logger)
	consumer := rabbitmq_pub.NewConsumer(rabbitmq_pub.ConsumerConfig{
		URL:         cfg.Rabbit.URL,
		Exchange:    cfg.Rabbit.Exchange,
		Queue:       cfg.Queue,
		Prefetch:    cfg.Prefetch,
		Tag:         "auth-mailer",
		MaxAttempts: cfg.MaxAttempts,
		Permanent:   func(err error) bool { return errors.Is(err, email.ErrPermanent) },
	}, sender, logger.Logger)

	return newMailer(consumer, cfg.MetricsAddr)
}

func newMailer(w Worker, adminAddr string) *Mailer {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Mailer{
		worker: w,
		admin:  &http.Server{Addr: adminAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second},
		lg:     logger.Component("mailer"),
	}
}

// Handler exposes the admin routes for tests.
func (m *Mailer) Handler() http.Handler { return m.admin.Handler }

// Run blocks until ctx is cancelled, then drains the worker.
func (m *Mailer) Run(ctx context.Context) error {
	if err := m.worker.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if m.admin.Addr != "" {
		go func() {
			m.lg.Info().Str("addr", m.admin.Addr).Msg("mailer admin listening")
			if err := m.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		m.lg.Info().Msg("mailer shutting down")
	case runErr = <-errCh:
		m.lg.Error().Err(runErr).Msg("mailer admin server failed")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.worker.Stop(stopCtx); err != nil {
		m.lg.Warn().Err(err).Msg("consumer did not stop cleanly")
	}
	_ = m.admin.Shutdown(stopCtx)
	return runErr
}
