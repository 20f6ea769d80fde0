package auth

import (
	"context"
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

/*
UserRepo
--------
Persistence port for users.
Only describes WHAT the auth service needs, not HOW it's stored.
Create must enforce unique email and username and report the colliding field
with domain.ErrEmailAlreadyExists / domain.ErrUsernameAlreadyExists.
Lookups return domain.ErrUserNotFound when nothing matches.
*/
type UserRepo interface {
	FindByEmailOrUsername(ctx context.Context, identifier string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)

	UpdatePassword(ctx context.Context, userID string, newHash string) error
	SetStatus(ctx context.Context, userID string, status domain.Status) error
}

/*
PasswordHasher
--------------
Abstracts bcrypt.
*/
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error // nil if match
}

/*
TokenIssuer
-----------
Session tokens carry id/role/status. Reset tokens carry only the email and are
rejected by VerifySession (and vice versa).
Verify errors are domain.ErrTokenExpired or domain.ErrTokenInvalid.
*/
type SessionClaims struct {
	UserID    string
	Role      domain.Role
	Status    domain.Status
	ExpiresAt time.Time
}

type TokenIssuer interface {
	IssueSession(c SessionClaims, ttl time.Duration) (string, error)
	VerifySession(token string) (SessionClaims, error)
	IssueReset(email string, ttl time.Duration) (string, error)
	VerifyReset(token string) (email string, err error)
}

/*
CodeStore
---------
Six digit one-time codes keyed by email for password reset.
Verify consumes the exact (email, code) pair atomically and reports false when
the pair is unknown, expired or already consumed.
*/
type CodeStore interface {
	Issue(ctx context.Context, email string) (code string, err error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

/*
CodeNotifier
------------
Delivers a verification code to the account's mailbox, directly over SMTP or
through the broker.
*/
type CodeNotifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

/*
IdentityVerifier
----------------
Validates an external identity assertion (Google ID token) and returns the
verified email and provider subject.
*/
type ExternalIdentity struct {
	Email   string
	Subject string
	Name    string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (ExternalIdentity, error)
}
