package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrKind groups error codes by how transports should report them.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"
	KindAuth           ErrKind = "auth"
	KindForbidden      ErrKind = "forbidden"
	KindNotFound       ErrKind = "not_found"
	KindConflict       ErrKind = "conflict"
	KindRateLimited    ErrKind = "rate_limited"
	KindExternal       ErrKind = "external"
	KindInfrastructure ErrKind = "infrastructure"
	KindInternal       ErrKind = "internal"
)

// Error carries a stable machine Code and a Message safe to show clients.
// Cause is for logs only and is never rendered outside dev.
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of a domain error, or KindInternal for anything else.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// validation errors (400)

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

// ErrValidation reports every failing field at once. fields maps field -> reason.
func ErrValidation(fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	meta := make(map[string]string, len(fields)+1)
	for f, reason := range fields {
		names = append(names, f)
		meta[f] = reason
	}
	sort.Strings(names)
	meta["fields"] = strings.Join(names, ",")
	return WithMeta(New(KindValidation, "validation_failed", "request validation failed"), meta)
}

func ErrWeakPassword(reason string) *Error {
	return WithMeta(New(KindValidation, "weak_password", "password does not meet requirements"), map[string]string{
		"reason": reason,
	})
}

func ErrEmailDomainNotAllowed(email string) *Error {
	return WithMeta(New(KindValidation, "email_domain_not_allowed", "please use a valid institutional email address"), map[string]string{
		"field": "email",
		"email": email,
	})
}

// ErrInvalidCode covers wrong, consumed and expired verification codes alike.
func ErrInvalidCode() *Error {
	return New(KindValidation, "invalid_code", "invalid or expired verification code")
}

func ErrInvalidStatus(status string) *Error {
	return WithMeta(
		New(KindValidation, "invalid_status", "invalid status"),
		map[string]string{"status": status},
	)
}

// auth errors (401)

// Used for every login failure so callers cannot probe which accounts exist.
func ErrInvalidCredentials() *Error {
	return New(KindAuth, "invalid_credentials", "invalid credentials")
}

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", "no token provided")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", "token is expired")
}

func ErrResetTokenInvalid() *Error {
	return New(KindAuth, "reset_token_invalid", "invalid or expired reset token")
}

func ErrInvalidAssertion(cause error) *Error {
	return Wrap(KindAuth, "invalid_assertion", "invalid identity assertion", cause)
}

// forbidden (403)

func ErrForbidden() *Error {
	return New(KindForbidden, "forbidden", "forbidden")
}

func ErrInsufficientRole(required string) *Error {
	return WithMeta(New(KindForbidden, "insufficient_role", "insufficient role"), map[string]string{
		"required": required,
	})
}

func ErrAccountNotActive(status Status) *Error {
	return WithMeta(New(KindForbidden, "account_not_active", "account is not active, please wait for admin approval"), map[string]string{
		"status": string(status),
	})
}

// not found (404)

func ErrUserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "user not found")
}

// conflict (409)

func ErrEmailAlreadyExists() *Error {
	return WithMeta(New(KindConflict, "email_already_exists", "email already registered"), map[string]string{
		"field": "email",
	})
}

func ErrUsernameAlreadyExists() *Error {
	return WithMeta(New(KindConflict, "username_already_exists", "username already taken"), map[string]string{
		"field": "username",
	})
}

// rate limit (429)

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), map[string]string{
		"scope": scope,
	})
}

// external services (500)

func ErrEmailSendFailed(cause error) *Error {
	return Wrap(KindExternal, "email_send_failed", "failed to send verification code", cause)
}

func ErrIdentityProviderFailed(cause error) *Error {
	return Wrap(KindExternal, "identity_provider_failed", "identity provider unavailable", cause)
}

func ErrOAuthNotConfigured() *Error {
	return New(KindExternal, "oauth_not_configured", "oauth configuration error")
}

// infrastructure / internal (5xx)

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrRabbitUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "rabbit_unavailable", "message broker unavailable", cause)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, "hash_failed", "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
