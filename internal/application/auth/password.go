package auth

import (
	"context"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// Password reset runs NoRequest -> CodeIssued -> CodeVerified -> PasswordReset.
// ForgotPassword/ResendCode issue codes, VerifyCode trades a code for a reset
// token, ResetPassword trades the reset token for a new password.

// ForgotPassword issues a code for a known email and mails it. If delivery
// fails the code stays persisted and the caller may resend.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	return s.issueCode(ctx, email, "code_issued")
}

// ResendCode issues an additional code. Earlier codes stay valid until consumed
// or expired.
func (s *Service) ResendCode(ctx context.Context, email string) error {
	return s.issueCode(ctx, email, "code_resent")
}

func (s *Service) issueCode(ctx context.Context, email, action string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.ErrMissingField("email")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.codes.Issue(ctx, u.Email)
	if err != nil {
		return err
	}

	s.audit(action, map[string]string{"user_id": u.ID, "email": u.Email})

	if err := s.notifier.SendVerificationCode(ctx, u.Email, code); err != nil {
		s.audit("code_delivery_failed", map[string]string{"user_id": u.ID})
		return domain.ErrEmailSendFailed(err)
	}
	return nil
}

// VerifyCode consumes the (email, code) pair and returns a reset token scoped
// to that email.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", domain.ErrMissingField("email")
	}
	if code == "" {
		return "", domain.ErrMissingField("code")
	}

	ok, err := s.codes.Verify(ctx, email, code)
	if err != nil {
		return "", err
	}
	if !ok {
		s.audit("code_verify_failed", map[string]string{"email": email})
		return "", domain.ErrInvalidCode()
	}

	tok, err := s.tokens.IssueReset(email, s.resetTTL)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}

	s.audit("code_verified", map[string]string{"email": email})
	return tok, nil
}

// ResetPassword verifies the reset token and replaces the stored hash.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return domain.ErrMissingField("resetToken")
	}
	if reason := domain.PasswordViolation(newPassword); reason != "" {
		return domain.ErrWeakPassword(reason)
	}

	email, err := s.tokens.VerifyReset(resetToken)
	if err != nil {
		return domain.ErrResetTokenInvalid()
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}

	s.audit("password_reset", map[string]string{"user_id": u.ID})
	return nil
}
