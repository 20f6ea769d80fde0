package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	// Core auth
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	OAuthLogin(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)

	// Password reset
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	VerifyCode(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	ResendCode(w http.ResponseWriter, r *http.Request)

	// Admin
	AdminSetStatus(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler

	AuthMW  Middleware
	AdminMW Middleware

	// Global wraps every route, outermost first (request id, access log, metrics, CORS).
	Global []Middleware
	// Limit returns the rate limit middleware for a route key; nil disables limits.
	Limit func(routeKey string) Middleware
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.AdminMW == nil {
		return nil, fmt.Errorf("nil Admin middleware")
	}

	limit := deps.Limit
	if limit == nil {
		limit = func(string) Middleware { return passThrough }
	}

	r := chi.NewRouter()
	for _, mw := range deps.Global {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- Core auth ---
	r.With(limit("register")).Post("/register", deps.Auth.Register)
	r.With(limit("login")).Post("/login", deps.Auth.Login)
	r.With(limit("oauth_login")).Post("/oauth/login", deps.Auth.OAuthLogin)
	r.Post("/refresh", deps.Auth.Refresh)
	r.Post("/logout", deps.Auth.Logout)

	// --- Password reset ---
	r.With(limit("forgot_password")).Post("/forgot-password", deps.Auth.ForgotPassword)
	r.With(limit("verify_code")).Post("/verify-code", deps.Auth.VerifyCode)
	r.Post("/reset-password", deps.Auth.ResetPassword)
	r.With(limit("resend_code")).Post("/resend-code", deps.Auth.ResendCode)

	// --- Authenticated ---
	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMW)
		r.Get("/me", deps.Auth.Me)
		r.Get("/user-details", deps.Auth.Me)
	})

	// --- Admin (privileged) ---
	r.Route("/admin", func(r chi.Router) {
		r.Use(deps.AuthMW)
		r.Use(deps.AdminMW)
		r.Patch("/users/{id}/status", deps.Auth.AdminSetStatus)
	})

	return r, nil
}

func passThrough(next http.Handler) http.Handler { return next }
