package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// EnsureAdmin creates an active admin account if none exists for email.
// Safe to call on every boot. Returns created=false when the account exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (domain.User, bool, error) {
	email = domain.NormalizeEmail(email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return domain.User{}, false, err
	}

	if reason := domain.PasswordViolation(password); reason != "" {
		return domain.User{}, false, domain.ErrWeakPassword(reason)
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return domain.User{}, false, err
	}

	u := domain.User{
		ID:             uuid.NewString(),
		Username:       domain.UsernameFromEmail(email),
		Email:          email,
		PasswordHash:   hash,
		Role:           domain.RoleAdmin,
		Status:         domain.StatusActive,
		Identity:       domain.Identity{Source: domain.IdentityPassword},
		ProfilePicture: domain.DefaultProfilePicture,
		CreatedAt:      s.now(),
	}
	if err := domain.ValidateNewUser(u, s.policy); err != nil {
		return domain.User{}, false, err
	}

	created, err := s.users.Create(ctx, u)
	if err != nil {
		if domain.Is(err, "email_already_exists") {
			existing, ferr := s.users.FindByEmail(ctx, email)
			return existing, false, ferr
		}
		return domain.User{}, false, err
	}

	s.audit("admin_seeded", map[string]string{"user_id": created.ID, "email": created.Email})
	return created, true, nil
}
