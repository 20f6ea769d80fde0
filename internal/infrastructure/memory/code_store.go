package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/security"
)

// CodeStore holds verification codes per email with their expiry.
// Expired entries are dropped lazily on access.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]map[string]time.Time // email -> code -> expiresAt
	ttl   time.Duration
	gen   func() (string, error)
	now   func() time.Time
}

func NewCodeStore(ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CodeStore{
		codes: make(map[string]map[string]time.Time),
		ttl:   ttl,
		gen:   security.NewVerificationCode,
		now:   time.Now,
	}
}

func (s *CodeStore) Issue(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", domain.ErrMissingField("email")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(email)
	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.gen()
		if err != nil {
			return "", err
		}
		if _, taken := s.codes[email][code]; taken {
			continue
		}
		if s.codes[email] == nil {
			s.codes[email] = make(map[string]time.Time)
		}
		s.codes[email][code] = s.now().Add(s.ttl)
		return code, nil
	}
	return "", domain.ErrInternal(errors.New("could not allocate a unique verification code"))
}

func (s *CodeStore) Verify(ctx context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.codes[email][code]
	if !ok {
		return false, nil
	}
	delete(s.codes[email], code)
	if len(s.codes[email]) == 0 {
		delete(s.codes, email)
	}
	return s.now().Before(exp), nil
}

func (s *CodeStore) pruneLocked(email string) {
	now := s.now()
	for code, exp := range s.codes[email] {
		if !now.Before(exp) {
			delete(s.codes[email], code)
		}
	}
}
