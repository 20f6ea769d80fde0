package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// BcryptHasher implements auth.PasswordHasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost for cost <= 0. Costs above
// bcrypt.MaxCost surface as hash_failed on first use.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", domain.ErrMissingField("password")
	case len(password) > 72:
		// bcrypt only reads the first 72 bytes
		return "", domain.ErrWeakPassword("max length 72 bytes")
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(out), nil
}

// Compare returns invalid_credentials on a mismatch and hash_failed when the
// stored hash cannot be parsed.
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return domain.ErrInvalidCredentials()
	default:
		return domain.ErrHashFailed(err)
	}
}
