package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// OAuthLogin verifies a Google ID token and logs the account in, creating a
// pending officer account on first sight. Status is not checked here; the
// session token carries it and downstream services decide.
func (s *Service) OAuthLogin(ctx context.Context, credential string) (LoginResult, error) {
	if s.identity == nil {
		return LoginResult{}, domain.ErrOAuthNotConfigured()
	}
	if credential == "" {
		return LoginResult{}, domain.ErrMissingField("credential")
	}

	ext, err := s.identity.Verify(ctx, credential)
	if err != nil {
		return LoginResult{}, err
	}

	email := domain.NormalizeEmail(ext.Email)
	if !s.policy.AllowsEmail(email) {
		s.audit("oauth_rejected", map[string]string{"email": email, "reason": "domain_not_allowed"})
		return LoginResult{}, domain.ErrEmailDomainNotAllowed(email)
	}

	u, isNew, err := s.findOrCreateOAuthUser(ctx, email, ext.Subject)
	if err != nil {
		return LoginResult{}, err
	}

	tok, expiresIn, err := s.issueSession(u, s.oauthSessionTTL)
	if err != nil {
		return LoginResult{}, err
	}

	if isNew {
		s.audit("oauth_register", map[string]string{
			"user_id":  u.ID,
			"provider": string(domain.IdentityGoogle),
			"email":    u.Email,
		})
	} else {
		s.audit("oauth_login", map[string]string{
			"user_id":  u.ID,
			"provider": string(domain.IdentityGoogle),
		})
	}

	return LoginResult{User: u, Token: tok, ExpiresIn: expiresIn, IsNewUser: isNew}, nil
}

func (s *Service) findOrCreateOAuthUser(ctx context.Context, email, subject string) (domain.User, bool, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return domain.User{}, false, err
	}

	u := domain.User{
		ID:             uuid.NewString(),
		Username:       domain.UsernameFromEmail(email),
		Email:          email,
		Organization:   domain.OAuthPendingOrganization,
		Role:           domain.RoleOfficer,
		Status:         domain.StatusPending,
		Identity:       domain.Identity{Source: domain.IdentityGoogle, ExternalID: subject},
		ProfilePicture: domain.DefaultProfilePicture,
		CreatedAt:      s.now(),
	}

	created, err := s.users.Create(ctx, u)
	switch {
	case err == nil:
		return created, true, nil
	case domain.Is(err, "username_already_exists"):
		// local part already taken by another account; disambiguate once
		u.Username = u.Username + "-" + uuid.NewString()[:6]
		created, err = s.users.Create(ctx, u)
		if err != nil {
			return domain.User{}, false, err
		}
		return created, true, nil
	case domain.Is(err, "email_already_exists"):
		// lost a race with a concurrent first login
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return domain.User{}, false, err
		}
		return existing, false, nil
	default:
		return domain.User{}, false, err
	}
}
