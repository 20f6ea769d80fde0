package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const (
	typSession = "session"
	typReset   = "reset"
)

// JWTIssuer signs session and reset tokens with one HS256 secret.
// The "typ" claim keeps the two scopes apart.
type JWTIssuer struct {
	secret []byte
	issuer string
}

func NewJWTIssuer(secret string, issuer string) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		issuer: issuer,
	}
}

type sessionClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Status string `json:"status"`
	Typ    string `json:"typ"`
	jwt.RegisteredClaims
}

// reset tokens deliberately carry no id or role
type resetClaims struct {
	Email string `json:"email"`
	Typ   string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *JWTIssuer) IssueSession(c auth.SessionClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UserID: c.UserID,
		Role:   string(c.Role),
		Status: string(c.Status),
		Typ:    typSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return s.sign(claims)
}

func (s *JWTIssuer) VerifySession(token string) (auth.SessionClaims, error) {
	var claims sessionClaims
	if err := s.parse(token, &claims); err != nil {
		return auth.SessionClaims{}, err
	}
	if claims.Typ != typSession || claims.UserID == "" {
		return auth.SessionClaims{}, domain.ErrTokenInvalid()
	}

	exp := time.Time{}
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return auth.SessionClaims{
		UserID:    claims.UserID,
		Role:      domain.Role(claims.Role),
		Status:    domain.Status(claims.Status),
		ExpiresAt: exp,
	}, nil
}

func (s *JWTIssuer) IssueReset(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := resetClaims{
		Email: email,
		Typ:   typReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return s.sign(claims)
}

func (s *JWTIssuer) VerifyReset(token string) (string, error) {
	var claims resetClaims
	if err := s.parse(token, &claims); err != nil {
		return "", err
	}
	if claims.Typ != typReset || claims.Email == "" {
		return "", domain.ErrTokenInvalid()
	}
	return claims.Email, nil
}

func (s *JWTIssuer) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *JWTIssuer) parse(token string, claims jwt.Claims) error {
	if token == "" {
		return domain.ErrTokenMissing()
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.ErrTokenExpired()
		}
		return domain.ErrTokenInvalid()
	}
	if !parsed.Valid {
		return domain.ErrTokenInvalid()
	}
	return nil
}
