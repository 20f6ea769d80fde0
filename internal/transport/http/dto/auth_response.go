package dto

import (
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// UserSummary is the only user shape that leaves the service; it has no
// password field by construction.
type UserSummary struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Organization   string    `json:"organization"`
	Role           string    `json:"role"`
	Status         string    `json:"status"`
	AuthProvider   string    `json:"authProvider"`
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

func NewUserSummary(u domain.User) UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		Organization:   u.Organization,
		Role:           string(u.Role),
		Status:         string(u.Status),
		AuthProvider:   string(u.Identity.Source),
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
	}
}

type RegisterResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

type LoginResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expiresIn"` // seconds
	User      UserSummary `json:"user"`
	IsNewUser bool        `json:"isNewUser,omitempty"`
}

type RefreshResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type VerifyCodeResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

type StatusResponse struct {
	Success bool        `json:"success"`
	User    UserSummary `json:"user"`
}
