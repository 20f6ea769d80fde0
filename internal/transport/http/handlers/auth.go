package http_handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/dto"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/middleware"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/response"
)

const (
	msgRegistered   = "Registration successful! Please wait for admin approval."
	msgCodeSent     = "Verification code sent to email"
	msgCodeResent   = "New verification code sent to email"
	msgCodeVerified = "Code verified successfully"
	msgResetDone    = "Password reset successful"
	msgLoggedOut    = "Logout successful"
)

type AuthHandler struct {
	svc      *auth.Service
	writeErr middleware.WriteErrFunc
}

// NewAuthHandler builds the handler set. A nil writeErr falls back to
// response.WriteError, which never exposes error details.
func NewAuthHandler(svc *auth.Service, writeErr middleware.WriteErrFunc) *AuthHandler {
	if writeErr == nil {
		writeErr = response.WriteError
	}
	return &AuthHandler{svc: svc, writeErr: writeErr}
}

// decode reads the body and runs the request's own validation.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, req interface{ Validate() error }) bool {
	if err := response.DecodeJSON(w, r, req); err != nil {
		h.writeErr(w, r, err)
		return false
	}
	if err := req.Validate(); err != nil {
		h.writeErr(w, r, err)
		return false
	}
	return true
}

// ---- Registration / login ----

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		Organization: req.Organization,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", u.ID).
		Str("organization", u.Organization).
		Msg("user_registered")

	response.Created(w, dto.RegisterResponse{
		Success: true,
		Message: msgRegistered,
		User:    dto.NewUserSummary(u),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Login(), req.Password)
	middleware.LoginAttemptsTotal.WithLabelValues("password", middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Msg("user_logged_in")

	response.OK(w, loginResponse(res))
}

// OAuthLogin exchanges a Google ID token for a session token. First sight of
// an email creates a pending officer account.
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.OAuthLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.OAuthLogin(r.Context(), req.Credential)
	middleware.LoginAttemptsTotal.WithLabelValues("google", middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().
		Str("user_id", res.User.ID).
		Bool("new_user", res.IsNewUser).
		Msg("user_logged_in_google")

	response.OK(w, loginResponse(res))
}

// Refresh accepts the session token in the Authorization header or, for
// clients that keep it in storage, in the body.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	tok, herr := middleware.BearerToken(r)
	if herr != nil {
		var req dto.RefreshRequest
		if r.ContentLength != 0 {
			if err := response.DecodeJSON(w, r, &req); err != nil {
				h.writeErr(w, r, err)
				return
			}
		}
		tok = strings.TrimSpace(req.Token)
		if tok == "" {
			h.writeErr(w, r, herr)
			return
		}
	}

	res, err := h.svc.Refresh(r.Context(), tok)
	middleware.TokenRefreshTotal.WithLabelValues(middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.OK(w, dto.RefreshResponse{
		Success:   true,
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
	})
}

// Logout only acknowledges; session tokens are stateless and expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	response.Message(w, msgLoggedOut)
}

// ---- Current user ----

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.writeErr(w, r, domain.ErrTokenInvalid())
		return
	}

	u, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.OK(w, dto.NewUserSummary(u))
}

// ---- Password reset ----

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.svc.ForgotPassword(r.Context(), req.Email)
	middleware.PasswordResetTotal.WithLabelValues("issue", middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.Message(w, msgCodeSent)
}

func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.svc.ResendCode(r.Context(), req.Email)
	middleware.PasswordResetTotal.WithLabelValues("resend", middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.Message(w, msgCodeResent)
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	resetToken, err := h.svc.VerifyCode(r.Context(), req.Email, req.Code)
	middleware.PasswordResetTotal.WithLabelValues("verify", middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.OK(w, dto.VerifyCodeResponse{
		Message:    msgCodeVerified,
		ResetToken: resetToken,
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.svc.ResetPassword(r.Context(), req.ResetToken, req.NewPassword)
	middleware.PasswordResetTotal.WithLabelValues("reset", middleware.Result(err)).Inc()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.Message(w, msgResetDone)
}

// ---- Admin ----

func (h *AuthHandler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.UserIDFromContext(r.Context())

	targetID := strings.TrimSpace(chi.URLParam(r, "id"))
	if targetID == "" {
		h.writeErr(w, r, domain.ErrMissingField("id"))
		return
	}

	var req dto.SetStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.svc.SetStatus(r.Context(), actorID, targetID, req.Status)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	response.OK(w, dto.StatusResponse{Success: true, User: dto.NewUserSummary(u)})
}

func loginResponse(res auth.LoginResult) dto.LoginResponse {
	return dto.LoginResponse{
		Success:   true,
		Token:     res.Token,
		ExpiresIn: res.ExpiresIn,
		User:      dto.NewUserSummary(res.User),
		IsNewUser: res.IsNewUser,
	}
}
