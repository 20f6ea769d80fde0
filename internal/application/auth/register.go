package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	Organization string
}

// Register creates a pending officer account. The account cannot log in with
// its password until an admin activates it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	u := domain.User{
		ID:             uuid.NewString(),
		Username:       domain.NormalizeUsername(in.Username),
		Email:          domain.NormalizeEmail(in.Email),
		Organization:   in.Organization,
		Role:           domain.RoleOfficer,
		Status:         domain.StatusPending,
		Identity:       domain.Identity{Source: domain.IdentityPassword},
		ProfilePicture: domain.DefaultProfilePicture,
		CreatedAt:      s.now(),
	}

	fields := domain.NewUserViolations(u, s.policy)
	delete(fields, "password") // hash does not exist yet; the length rule below owns this field
	if reason := domain.PasswordViolation(in.Password); reason != "" {
		fields["password"] = reason
	}
	if len(fields) > 0 {
		return domain.User{}, domain.ErrValidation(fields)
	}

	if err := s.ensureAvailable(ctx, u.Email, u.Username); err != nil {
		return domain.User{}, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = hash

	// The store's unique constraints still decide concurrent registrations.
	created, err := s.users.Create(ctx, u)
	if err != nil {
		return domain.User{}, err
	}

	s.audit("register", map[string]string{
		"user_id":      created.ID,
		"email":        created.Email,
		"organization": created.Organization,
	})
	return created, nil
}

func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return domain.ErrEmailAlreadyExists()
	} else if !isNotFound(err) {
		return err
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return domain.ErrUsernameAlreadyExists()
	} else if !isNotFound(err) {
		return err
	}
	return nil
}

// hashPassword keeps validation errors from the hasher as they are and
// wraps anything else as hash_failed.
func (s *Service) hashPassword(pw string) (string, error) {
	hash, err := s.hasher.Hash(pw)
	switch {
	case err == nil:
		return hash, nil
	case domain.KindOf(err) == domain.KindValidation:
		return "", err
	default:
		return "", domain.ErrHashFailed(err)
	}
}
