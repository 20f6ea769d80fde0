package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const testClientID = "client-123.apps.googleusercontent.com"

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func givenVerifier(pub *rsa.PublicKey) *GoogleVerifier {
	jwks := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		"k1": keyfunc.NewGivenCustom(pub, keyfunc.GivenKeyOptions{Algorithm: "RS256"}),
	})
	return NewGoogleVerifierWithKeys(testClientID, jwks)
}

func googleToken(t *testing.T, key *rsa.PrivateKey, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "1098765",
		"email":          "JDoe@student.buksu.edu.ph",
		"email_verified": true,
		"name":           "Jane Doe",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestGoogleVerifier_ValidToken(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)
	v := givenVerifier(&key.PublicKey)

	id, err := v.Verify(context.Background(), googleToken(t, key, nil))
	require.NoError(t, err)
	assert.Equal(t, "jdoe@student.buksu.edu.ph", id.Email)
	assert.Equal(t, "1098765", id.Subject)
	assert.Equal(t, "Jane Doe", id.Name)
}

func TestGoogleVerifier_BareIssuerAndStringVerified(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)
	v := givenVerifier(&key.PublicKey)

	tok := googleToken(t, key, func(c jwt.MapClaims) {
		c["iss"] = "accounts.google.com"
		c["email_verified"] = "true"
	})
	_, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
}

func TestGoogleVerifier_Rejections(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)
	other := newRSAKey(t)
	v := givenVerifier(&key.PublicKey)

	cases := map[string]string{
		"wrong audience":      googleToken(t, key, func(c jwt.MapClaims) { c["aud"] = "someone-else" }),
		"wrong issuer":        googleToken(t, key, func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }),
		"expired":             googleToken(t, key, func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }),
		"unverified email":    googleToken(t, key, func(c jwt.MapClaims) { c["email_verified"] = false }),
		"no email":            googleToken(t, key, func(c jwt.MapClaims) { delete(c, "email") }),
		"no subject":          googleToken(t, key, func(c jwt.MapClaims) { delete(c, "sub") }),
		"signed by other key": googleToken(t, other, nil),
		"garbage":             "not-a-token",
	}
	for name, tok := range cases {
		_, err := v.Verify(context.Background(), tok)
		assert.True(t, domain.Is(err, "invalid_assertion"), "%s: got %v", name, err)
		assert.Equal(t, domain.KindAuth, domain.KindOf(err), name)
	}
}

func TestGoogleVerifier_HS256Rejected(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)
	v := givenVerifier(&key.PublicKey)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://accounts.google.com", "aud": testClientID, "sub": "1",
		"email": "a@buksu.edu.ph", "email_verified": true,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), s)
	assert.True(t, domain.Is(err, "invalid_assertion"), "got %v", err)
}

func TestGoogleVerifier_EmptyCredential(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)

	_, err := givenVerifier(&key.PublicKey).Verify(context.Background(), "  ")
	assert.True(t, domain.Is(err, "missing_field"))
}

func TestGoogleVerifier_CanceledContext(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := givenVerifier(&key.PublicKey).Verify(ctx, googleToken(t, key, nil))
	assert.True(t, domain.Is(err, "identity_provider_failed"))
}

func jwksJSON(kid string, pub *rsa.PublicKey) []byte {
	b, _ := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
	return b
}

func TestNewGoogleVerifier_FetchesJWKS(t *testing.T) {
	t.Parallel()
	key := newRSAKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON("k1", &key.PublicKey))
	}))
	defer srv.Close()

	v, err := NewGoogleVerifier(testClientID, srv.URL, zerolog.Nop())
	require.NoError(t, err)
	defer v.Close()

	id, err := v.Verify(context.Background(), googleToken(t, key, nil))
	require.NoError(t, err)
	assert.Equal(t, "1098765", id.Subject)
}

func TestNewGoogleVerifier_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewGoogleVerifier("", "http://unused", zerolog.Nop())
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err = NewGoogleVerifier(testClientID, srv.URL, zerolog.Nop())
	assert.True(t, domain.Is(err, "identity_provider_failed"), "got %v", err)
}
