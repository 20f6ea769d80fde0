package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/baechuer/orgdocs/services/auth-service/internal/bootstrap"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

const shutdownTimeout = 15 * time.Second

type server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

// builder returns the server, its listen address and a cleanup for stores.
type builder func() (server, string, func(), error)

// Run serves until ctx is done or the listener fails and returns the exit code.
func Run(ctx context.Context, build builder, lg zerolog.Logger) int {
	srv, addr, cleanup, err := build()
	if err != nil {
		lg.Error().Err(err).Msg("bootstrap failed")
		return 1
	}
	defer cleanup()

	serveErr := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", addr).Msg("auth service listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info().Msg("shutting down")
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return 0
		}
		lg.Error().Err(err).Msg("listener failed")
		return 1
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		lg.Warn().Err(err).Msg("graceful shutdown failed, forcing close")
		_ = srv.Close()
	}
	lg.Info().Msg("stopped")
	return 0
}

func fromBootstrap() (server, string, func(), error) {
	srv, cleanup, err := bootstrap.NewServer()
	if err != nil {
		return nil, "", nil, err
	}
	return srv, srv.Addr, cleanup, nil
}

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, fromBootstrap, logger.Component("main"))
	stop()
	os.Exit(code)
}
