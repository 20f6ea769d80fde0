package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   string            `json:"details,omitempty"`
}

// WriteError is ErrorWriter(false).
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, false)
}

// ErrorWriter converts errors into the JSON error envelope. With exposeDetails
// the wrapped cause is included, which is only meant for development.
func ErrorWriter(exposeDetails bool) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, r, err, exposeDetails)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, exposeDetails bool) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"
	var meta map[string]string

	var de *domain.Error
	if errors.As(err, &de) {
		status = statusFromKind(de.Kind)
		code = de.Code
		message = de.Message
		meta = de.Meta
	}

	// server-side failures are logged with their cause; client errors are not
	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error().Err(err).Str("code", code).Int("status", status).Msg("request failed")
	}

	payload := ErrorPayload{
		Code:      code,
		Message:   message,
		Meta:      meta,
		RequestID: RequestIDFromContext(r),
	}
	if exposeDetails && err != nil {
		payload.Details = err.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: payload})
}

var kindStatus = map[domain.ErrKind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindAuth:           http.StatusUnauthorized,
	domain.KindForbidden:      http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindConflict:       http.StatusConflict,
	domain.KindRateLimited:    http.StatusTooManyRequests,
	domain.KindInfrastructure: http.StatusServiceUnavailable,
}

// statusFromKind defaults to 500 for external, internal and unknown kinds.
func statusFromKind(kind domain.ErrKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}
