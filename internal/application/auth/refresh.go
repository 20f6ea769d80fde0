package auth

import (
	"context"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

type RefreshResult struct {
	Token     string
	ExpiresIn int64
	Claims    SessionClaims
}

// Refresh re-issues a still-valid session token with a fresh expiry. Role and
// status are read back from the store so an activation shows up without a new
// login. Tokens are stateless, so nothing is revoked.
func (s *Service) Refresh(ctx context.Context, token string) (RefreshResult, error) {
	if token == "" {
		return RefreshResult{}, domain.ErrTokenMissing()
	}

	claims, err := s.tokens.VerifySession(token)
	if err != nil {
		return RefreshResult{}, err
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if isNotFound(err) {
			return RefreshResult{}, domain.ErrTokenInvalid()
		}
		return RefreshResult{}, err
	}

	fresh := SessionClaims{UserID: u.ID, Role: u.Role, Status: u.Status}
	tok, err := s.tokens.IssueSession(fresh, s.sessionTTL)
	if err != nil {
		return RefreshResult{}, domain.ErrTokenSignFailed(err)
	}

	s.audit("token_refresh", map[string]string{"user_id": claims.UserID})
	return RefreshResult{
		Token:     tok,
		ExpiresIn: int64(s.sessionTTL.Seconds()),
		Claims:    fresh,
	}, nil
}
