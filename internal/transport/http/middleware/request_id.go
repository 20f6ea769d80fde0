package middleware

import (
	"net/http"

	"github.com/google/uuid"

	appCtx "github.com/baechuer/orgdocs/services/auth-service/internal/pkg/context"
)

const (
	HeaderXRequestID = "X-Request-Id"
	maxRequestIDLen  = 128
)

// RequestID propagates a caller-supplied id or mints a uuid. The id is echoed
// on the response and stored in the request context for logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderXRequestID)
		if !usableRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderXRequestID, id)
		next.ServeHTTP(w, r.WithContext(appCtx.WithRequestID(r.Context(), id)))
	})
}

// usableRequestID rejects empty, oversized and non-printable ids so they
// cannot break log lines.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
