package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// NewVerificationCode returns a uniformly random 6 digit code, leading zeros kept.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", domain.ErrRandomFailed(err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}
