package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/security"
)

type codeDoc struct {
	Email     string    `bson:"email"`
	Code      string    `bson:"code"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// CodeStore persists verification codes in their own collection.
// The TTL index reaps expired documents eventually; Verify also filters on
// expires_at so a code is never accepted past its window.
type CodeStore struct {
	coll *gomongo.Collection
	ttl  time.Duration
	gen  func() (string, error)
	now  func() time.Time
}

func NewCodeStore(c *Client, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CodeStore{
		coll: c.db.Collection(codesCollection),
		ttl:  ttl,
		gen:  security.NewVerificationCode,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *CodeStore) Issue(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.ErrMissingField("email")
	}

	for attempt := 0; attempt < 3; attempt++ {
		code, err := s.gen()
		if err != nil {
			return "", err
		}
		now := s.now()
		_, err = s.coll.InsertOne(ctx, codeDoc{
			Email:     email,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if err == nil {
			return code, nil
		}
		// same code still outstanding for this email
		if gomongo.IsDuplicateKeyError(err) {
			continue
		}
		return "", domain.ErrDBUnavailable(err)
	}
	return "", domain.ErrInternal(errors.New("could not allocate a unique verification code"))
}

func (s *CodeStore) Verify(ctx context.Context, email, code string) (bool, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return false, nil
	}

	filter := bson.M{
		"email":      email,
		"code":       code,
		"expires_at": bson.M{"$gt": s.now()},
	}
	err := s.coll.FindOneAndDelete(ctx, filter).Err()
	if err != nil {
		if errors.Is(err, gomongo.ErrNoDocuments) {
			return false, nil
		}
		return false, domain.ErrDBUnavailable(err)
	}
	return true, nil
}
