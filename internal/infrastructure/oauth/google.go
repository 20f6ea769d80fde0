package oauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleVerifier validates Google Sign-In ID tokens (the "credential" the
// browser receives) against Google's published signing keys.
type GoogleVerifier struct {
	clientID string
	keyfunc  jwt.Keyfunc
	jwks     *keyfunc.JWKS
}

// NewGoogleVerifier fetches the key set once and keeps it fresh in the background.
func NewGoogleVerifier(clientID, jwksURL string, log zerolog.Logger) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	if jwksURL == "" {
		jwksURL = DefaultGoogleJWKSURL
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Warn().Err(err).Str("jwks_url", jwksURL).Msg("google jwks background refresh failed")
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, domain.ErrIdentityProviderFailed(err)
	}
	return &GoogleVerifier{clientID: clientID, keyfunc: jwks.Keyfunc, jwks: jwks}, nil
}

// NewGoogleVerifierWithKeys uses a fixed key set.
func NewGoogleVerifierWithKeys(clientID string, jwks *keyfunc.JWKS) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID, keyfunc: jwks.Keyfunc, jwks: jwks}
}

// Close stops the background refresh.
func (v *GoogleVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"` // bool, or "true" on older tokens
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

func (c googleClaims) emailVerified() bool {
	switch v := c.EmailVerified.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (auth.ExternalIdentity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return auth.ExternalIdentity{}, domain.ErrMissingField("credential")
	}
	if err := ctx.Err(); err != nil {
		return auth.ExternalIdentity{}, domain.ErrIdentityProviderFailed(err)
	}

	var claims googleClaims
	_, err := jwt.ParseWithClaims(credential, &claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return auth.ExternalIdentity{}, domain.ErrInvalidAssertion(err)
	}

	if !validIssuer(claims.Issuer) {
		return auth.ExternalIdentity{}, domain.ErrInvalidAssertion(errors.New("unexpected issuer " + claims.Issuer))
	}
	if claims.Subject == "" || claims.Email == "" {
		return auth.ExternalIdentity{}, domain.ErrInvalidAssertion(errors.New("token has no subject or email"))
	}
	if !claims.emailVerified() {
		return auth.ExternalIdentity{}, domain.ErrInvalidAssertion(errors.New("email not verified by google"))
	}

	return auth.ExternalIdentity{
		Email:   domain.NormalizeEmail(claims.Email),
		Subject: claims.Subject,
		Name:    claims.Name,
	}, nil
}

func validIssuer(iss string) bool {
	for _, want := range googleIssuers {
		if iss == want {
			return true
		}
	}
	return false
}
