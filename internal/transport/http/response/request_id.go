package response

import (
	"net/http"

	appCtx "github.com/baechuer/orgdocs/services/auth-service/internal/pkg/context"
)

// RequestIDFromContext returns the id set by the RequestID middleware.
func RequestIDFromContext(r *http.Request) string {
	return appCtx.GetRequestID(r.Context())
}
