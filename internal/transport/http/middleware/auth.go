package middleware

import (
	"net/http"
	"strings"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

type SessionVerifier interface {
	VerifySession(token string) (auth.SessionClaims, error)
}

type WriteErrFunc func(http.ResponseWriter, *http.Request, error)

// BearerToken extracts the token from "Authorization: Bearer <token>".
// A missing header is token_missing; anything malformed is token_invalid.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", domain.ErrTokenMissing()
	}

	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.ErrTokenInvalid()
	}

	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return "", domain.ErrTokenInvalid()
	}
	return raw, nil
}

// Auth verifies the session token and injects its claims into the request
// context. Reset tokens are rejected by the verifier.
func Auth(verifier SessionVerifier, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			claims, err := verifier.VerifySession(raw)
			if err != nil {
				writeErr(w, r, err)
				return
			}
			if strings.TrimSpace(claims.UserID) == "" {
				writeErr(w, r, domain.ErrTokenInvalid())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
