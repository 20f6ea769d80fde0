package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// FixedWindowConfig defines the configuration for a fixed-window rate limit.
type FixedWindowConfig struct {
	RouteKey string
	Limit    int
	Window   time.Duration
}

// RateLimitFixedWindow limits requests per route and caller. A nil limiter or
// a limiter error lets the request through.
func RateLimitFixedWindow(limiter RateLimiter, cfg FixedWindowConfig, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.RouteKey == "" {
		cfg.RouteKey = "unknown"
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil || cfg.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(cfg, r, time.Now())

			allowed, retry, err := limiter.Allow(r.Context(), key, cfg.Limit, cfg.Window)
			switch {
			case err != nil:
				logger.WithCtx(r.Context()).Warn().Err(err).
					Str("route", cfg.RouteKey).
					Msg("rate limiter unavailable, allowing request")
			case !allowed:
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry, cfg.Window)))
				writeErr(w, r, domain.ErrRateLimited(cfg.RouteKey))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateKey is rl:<route>:<caller>:<bucket>. The bucket keeps keys from
// outliving their window even if a TTL is lost.
func rateKey(cfg FixedWindowConfig, r *http.Request, now time.Time) string {
	return fmt.Sprintf("rl:%s:%s:%d", cfg.RouteKey, userOrIP(r), windowBucket(now, cfg.Window))
}

func retryAfterSeconds(retry, window time.Duration) int {
	if retry <= 0 {
		retry = window
	}
	return max(1, int(math.Ceil(retry.Seconds())))
}

func windowBucket(now time.Time, window time.Duration) int64 {
	sec := int64(window.Seconds())
	if sec <= 0 {
		sec = 60
	}
	return now.Unix() / sec
}

// userOrIP prefers the session user id if present; otherwise falls back to client IP.
func userOrIP(r *http.Request) string {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		return "u:" + uid
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is only meaningful behind our own proxy.
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
