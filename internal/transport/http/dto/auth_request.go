package dto

import (
	"strings"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// -------- Registration / login --------

// RegisterRequest only bounds field sizes here; required fields, the email
// domain policy and password length are checked together by the service so
// every failing field is reported at once.
type RegisterRequest struct {
	Username     string `json:"username" validate:"max=50,excludes=@"`
	Email        string `json:"email" validate:"max=255"`
	Password     string `json:"password" validate:"max=72"`
	Organization string `json:"organization" validate:"max=120"`
}

func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Organization = strings.TrimSpace(r.Organization)
	return validateStruct(r)
}

// LoginRequest accepts the identifier under "email", "username" or "identifier".
type LoginRequest struct {
	Email      string `json:"email" validate:"max=255"`
	Username   string `json:"username" validate:"max=255"`
	Identifier string `json:"identifier" validate:"max=255"`
	Password   string `json:"password" validate:"max=72"`
}

func (r *LoginRequest) Login() string {
	for _, v := range []string{r.Identifier, r.Email, r.Username} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (r *LoginRequest) Validate() error {
	if r.Login() == "" {
		return domain.ErrMissingField("email")
	}
	if r.Password == "" {
		return domain.ErrMissingField("password")
	}
	return validateStruct(r)
}

type OAuthLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

func (r *OAuthLoginRequest) Validate() error {
	r.Credential = strings.TrimSpace(r.Credential)
	return validateStruct(r)
}

// RefreshRequest may be empty when the token comes in the Authorization header.
type RefreshRequest struct {
	Token string `json:"token"`
}

// -------- Password reset --------

// EmailRequest is the body of forgot-password and resend-code.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (r *EmailRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validateStruct(r)
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (r *VerifyCodeRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.Code = strings.TrimSpace(r.Code)
	return validateStruct(r)
}

// ResetPasswordRequest leaves the minimum length to the service, which reports
// weak_password.
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

func (r *ResetPasswordRequest) Validate() error {
	r.ResetToken = strings.TrimSpace(r.ResetToken)
	return validateStruct(r)
}

// -------- Admin --------

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active inactive"`
}

func (r *SetStatusRequest) Validate() error {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	return validateStruct(r)
}
