package auth

import (
	"context"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// Login authenticates by email or username and issues a session token.
// Order: lookup -> status -> password. Unknown identifiers and wrong passwords
// both map to invalid credentials.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identifier = domain.NormalizeEmail(identifier)
	if identifier == "" || password == "" {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	u, err := s.users.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			s.audit("login_failed", map[string]string{"reason": "unknown_identifier"})
			return LoginResult{}, domain.ErrInvalidCredentials()
		}
		return LoginResult{}, err
	}

	if !u.IsActive() {
		s.audit("login_failed", map[string]string{
			"user_id": u.ID,
			"reason":  "account_not_active",
			"status":  string(u.Status),
		})
		return LoginResult{}, domain.ErrAccountNotActive(u.Status)
	}

	// Google-only accounts have no password to compare against.
	if !u.HasPassword() {
		return LoginResult{}, domain.ErrInvalidCredentials()
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.audit("login_failed", map[string]string{"user_id": u.ID, "reason": "bad_password"})
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	tok, expiresIn, err := s.issueSession(u, s.sessionTTL)
	if err != nil {
		return LoginResult{}, err
	}

	s.audit("login", map[string]string{"user_id": u.ID, "role": string(u.Role)})
	return LoginResult{User: u, Token: tok, ExpiresIn: expiresIn}, nil
}
