package auth

import (
	"context"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// SetStatus is the administrative approval action: pending -> active, and
// active <-> inactive. actorID is empty for the CLI.
func (s *Service) SetStatus(ctx context.Context, actorID, userID, status string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if !domain.IsValidStatus(status) {
		return domain.User{}, domain.ErrInvalidStatus(status)
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	next := domain.Status(status)
	if u.Status == next {
		return u, nil
	}
	if err := s.users.SetStatus(ctx, userID, next); err != nil {
		return domain.User{}, err
	}

	s.audit("status_changed", map[string]string{
		"actor_id": actorID,
		"user_id":  userID,
		"from":     string(u.Status),
		"to":       status,
	})

	u.Status = next
	return u, nil
}
