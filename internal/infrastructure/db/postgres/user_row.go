package postgres

import (
	"database/sql"
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

type userRow struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   sql.NullString
	Organization   string
	Role           string
	Status         string
	IdentitySource string
	ExternalID     sql.NullString
	ProfilePicture string
	CreatedAt      time.Time
}

const userColumns = `id, username, email, password_hash, organization, role, status, identity_source, external_id, profile_picture, created_at`

func (ur *userRow) scanDest() []any {
	return []any{
		&ur.ID,
		&ur.Username,
		&ur.Email,
		&ur.PasswordHash,
		&ur.Organization,
		&ur.Role,
		&ur.Status,
		&ur.IdentitySource,
		&ur.ExternalID,
		&ur.ProfilePicture,
		&ur.CreatedAt,
	}
}

func (ur userRow) toDomain() domain.User {
	return domain.User{
		ID:           ur.ID,
		Username:     ur.Username,
		Email:        ur.Email,
		PasswordHash: ur.PasswordHash.String,
		Organization: ur.Organization,
		Role:         domain.Role(ur.Role),
		Status:       domain.Status(ur.Status),
		Identity: domain.Identity{
			Source:     domain.IdentitySource(ur.IdentitySource),
			ExternalID: ur.ExternalID.String,
		},
		ProfilePicture: ur.ProfilePicture,
		CreatedAt:      ur.CreatedAt.UTC(),
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
