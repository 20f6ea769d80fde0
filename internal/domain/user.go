package domain

import (
	"fmt"
	"strings"
	"time"
)

// IdentitySource records how an account authenticates.
type IdentitySource string

const (
	IdentityPassword IdentitySource = "password"
	IdentityGoogle   IdentitySource = "google"
)

// Identity is the tagged variant for the account's credential source.
// ExternalID is only set for external providers (Google "sub").
type Identity struct {
	Source     IdentitySource
	ExternalID string
}

const DefaultProfilePicture = "default-profile.png"

// OAuthPendingOrganization is assigned to accounts created through OAuth until an
// admin sets the real organization.
const OAuthPendingOrganization = "Pending"

type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	Organization   string
	Role           Role
	Status         Status
	Identity       Identity
	ProfilePicture string
	CreatedAt      time.Time
}

func (u User) HasPassword() bool { return u.PasswordHash != "" }

func (u User) IsActive() bool { return u.Status == StatusActive }

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername lowercases usernames so login by username is case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// UsernameFromEmail derives a username from the local part of an email.
func UsernameFromEmail(email string) string {
	email = NormalizeEmail(email)
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

const (
	MinPasswordLength = 6
	// bcrypt only reads the first 72 bytes
	MaxPasswordBytes = 72
)

// PasswordViolation returns the reason pw fails the length rules, or "".
// The upper bound counts bytes, so multi-byte characters use it up faster.
func PasswordViolation(pw string) string {
	switch {
	case len([]rune(pw)) < MinPasswordLength:
		return fmt.Sprintf("min length %d", MinPasswordLength)
	case len(pw) > MaxPasswordBytes:
		return fmt.Sprintf("max length %d bytes", MaxPasswordBytes)
	}
	return ""
}

// NewUserViolations returns field -> reason for every invariant u breaks.
func NewUserViolations(u User, policy EmailPolicy) map[string]string {
	fields := map[string]string{}

	if u.Username == "" {
		fields["username"] = "required"
	} else if strings.Contains(u.Username, "@") {
		// keeps usernames and emails disjoint for email-or-username lookups
		fields["username"] = "must not contain @"
	}
	if u.Email == "" {
		fields["email"] = "required"
	} else if !strings.Contains(u.Email, "@") {
		fields["email"] = "invalid format"
	} else if !policy.Allows(u.Email, u.Role) {
		fields["email"] = "domain not allowed"
	}
	if u.Role != RoleAdmin && strings.TrimSpace(u.Organization) == "" {
		fields["organization"] = "required"
	}
	if !IsValidRole(string(u.Role)) {
		fields["role"] = "invalid"
	}
	if !IsValidStatus(string(u.Status)) {
		fields["status"] = "invalid"
	}
	if u.Identity.Source == IdentityPassword && u.PasswordHash == "" {
		fields["password"] = "required"
	}
	return fields
}

// ValidateNewUser checks the invariants of a user about to be persisted and
// reports every failing field in one error.
func ValidateNewUser(u User, policy EmailPolicy) error {
	fields := NewUserViolations(u, policy)
	if len(fields) == 0 {
		return nil
	}
	return ErrValidation(fields)
}
