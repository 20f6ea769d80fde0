// Command mailer delivers password reset codes that the API publishes to
// RabbitMQ when NOTIFIER=rabbitmq.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/baechuer/orgdocs/services/auth-service/internal/bootstrap"
	"github.com/baechuer/orgdocs/services/auth-service/internal/config"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

func main() {
	logger.Init()
	lg := logger.Component("mailer")

	cfg, err := config.LoadMailer()
	if err != nil {
		lg.Error().Err(err).Msg("config")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.NewMailer(cfg).Run(ctx); err != nil {
		lg.Error().Err(err).Msg("mailer stopped")
		os.Exit(1)
	}
}
