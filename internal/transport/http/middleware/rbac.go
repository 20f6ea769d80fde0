package middleware

import (
	"net/http"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// RequireAtLeast lets a request through when the role placed in the context
// by Auth ranks at or above minRole. Admin outranks officer.
func RequireAtLeast(minRole string, writeErr WriteErrFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := checkRole(r, minRole); err != nil {
				writeErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkRole(r *http.Request, minRole string) error {
	role, ok := RoleFromContext(r.Context())
	switch {
	case !ok:
		// no Auth in front of this route
		return domain.ErrTokenInvalid()
	case !domain.IsValidRole(role), !domain.IsValidRole(minRole):
		return domain.ErrForbidden()
	case domain.RoleRank(role) < domain.RoleRank(minRole):
		return domain.ErrInsufficientRole(minRole)
	}
	return nil
}
