package auth

import (
	"context"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// GetUser returns the account behind a session. Callers strip the hash.
func (s *Service) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, domain.ErrTokenMissing()
	}
	return s.users.FindByID(ctx, userID)
}
