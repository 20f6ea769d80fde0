package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	appCtx "github.com/baechuer/orgdocs/services/auth-service/internal/pkg/context"
)

const serviceName = "auth-service"

// Logger is the process logger. Init must run before it is used.
var Logger zerolog.Logger

func Init() {
	InitWithWriter(os.Stdout)
}

// InitWithWriter configures Logger from LOG_LEVEL and LOG_FORMAT (json or
// console) and mirrors it into zerolog's global logger.
func InitWithWriter(w io.Writer) {
	if !strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(w).
		Level(levelFromEnv()).
		With().Timestamp().Str("service", serviceName).
		Logger()
	zlog.Logger = Logger
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithCtx returns the process logger enriched with request-scoped fields.
func WithCtx(ctx context.Context) *zerolog.Logger {
	c := Logger.With()
	if id := appCtx.GetRequestID(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	if uid := appCtx.GetUserID(ctx); uid != "" {
		c = c.Str("user_id", uid)
	}
	l := c.Logger()
	return &l
}

// Component tags log lines with the emitting subsystem.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
