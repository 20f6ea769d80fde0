package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/security"
)

var errNotConfigured = errors.New("redis code store not configured")

// CodeStore keeps one key per (email, code) pair so several outstanding codes
// for one email coexist. Redis expiry enforces the TTL; DEL is the atomic consume.
type CodeStore struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	gen    func() (string, error)
	now    func() time.Time
}

func NewCodeStore(c *Client, ttl time.Duration) *CodeStore {
	var rdb *goredis.Client
	if c != nil {
		rdb = c.rdb
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CodeStore{
		rdb:    rdb,
		prefix: "otp:",
		ttl:    ttl,
		gen:    security.NewVerificationCode,
		now:    time.Now,
	}
}

func (s *CodeStore) Issue(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.ErrMissingField("email")
	}
	if s.rdb == nil {
		return "", domain.ErrRedisUnavailable(errNotConfigured)
	}

	// a collision with a still-outstanding code for the same email is retried
	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.gen()
		if err != nil {
			return "", err
		}
		created := strconv.FormatInt(s.now().Unix(), 10)
		ok, err := s.rdb.SetNX(ctx, s.key(email, code), created, s.ttl).Result()
		if err != nil {
			return "", domain.ErrRedisUnavailable(err)
		}
		if ok {
			return code, nil
		}
	}
	return "", domain.ErrInternal(errors.New("could not allocate a unique verification code"))
}

func (s *CodeStore) Verify(ctx context.Context, email, code string) (bool, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return false, nil
	}
	if s.rdb == nil {
		return false, domain.ErrRedisUnavailable(errNotConfigured)
	}

	n, err := s.rdb.Del(ctx, s.key(email, code)).Result()
	if err != nil {
		return false, domain.ErrRedisUnavailable(err)
	}
	return n == 1, nil
}

func (s *CodeStore) key(email, code string) string {
	return s.prefix + email + ":" + code
}
