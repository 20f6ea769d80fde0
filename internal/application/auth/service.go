package auth

import (
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

type Service struct {
	users    UserRepo
	hasher   PasswordHasher
	tokens   TokenIssuer
	codes    CodeStore
	notifier CodeNotifier
	identity IdentityVerifier // nil when Google login is not configured

	policy domain.EmailPolicy

	sessionTTL      time.Duration
	oauthSessionTTL time.Duration
	resetTTL        time.Duration

	audit func(action string, fields map[string]string)
	now   func() time.Time
}

type Config struct {
	SessionTTL      time.Duration
	OAuthSessionTTL time.Duration
	ResetTokenTTL   time.Duration
	EmailDomains    []string
}

func NewService(
	users UserRepo,
	hasher PasswordHasher,
	tokens TokenIssuer,
	codes CodeStore,
	notifier CodeNotifier,
	identity IdentityVerifier,
	cfg Config,
) *Service {
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	oauthTTL := cfg.OAuthSessionTTL
	if oauthTTL <= 0 {
		oauthTTL = 24 * time.Hour
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = 15 * time.Minute
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		codes:    codes,
		notifier: notifier,
		identity: identity,
		policy:   domain.NewEmailPolicy(cfg.EmailDomains),

		sessionTTL:      sessionTTL,
		oauthSessionTTL: oauthTTL,
		resetTTL:        resetTTL,

		audit: func(string, map[string]string) {},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// LoginResult is shared by password and Google login.
type LoginResult struct {
	User      domain.User
	Token     string
	ExpiresIn int64 // seconds
	IsNewUser bool
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// Policy exposes the email policy so other entry points (seeding, admin tool)
// apply the same rules.
func (s *Service) Policy() domain.EmailPolicy { return s.policy }

func (s *Service) issueSession(u domain.User, ttl time.Duration) (string, int64, error) {
	tok, err := s.tokens.IssueSession(SessionClaims{
		UserID: u.ID,
		Role:   u.Role,
		Status: u.Status,
	}, ttl)
	if err != nil {
		return "", 0, domain.ErrTokenSignFailed(err)
	}
	return tok, int64(ttl.Seconds()), nil
}
