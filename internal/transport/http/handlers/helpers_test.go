package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/memory"
	"github.com/baechuer/orgdocs/services/auth-service/internal/infrastructure/security"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/middleware"
	"github.com/baechuer/orgdocs/services/auth-service/internal/transport/http/response"
)

// -------------------------
// Test wiring: real service over in-memory adapters
// -------------------------

type captureNotifier struct {
	mu   sync.Mutex
	sent map[string][]string // email -> codes in send order
	err  error
}

func (n *captureNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = map[string][]string{}
	}
	n.sent[email] = append(n.sent[email], code)
	return n.err
}

func (n *captureNotifier) last(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.sent[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

type fakeIdentity struct {
	ext auth.ExternalIdentity
	err error
}

func (f *fakeIdentity) Verify(_ context.Context, credential string) (auth.ExternalIdentity, error) {
	return f.ext, f.err
}

type harness struct {
	h        *AuthHandler
	users    *memory.UserRepo
	tokens   *security.JWTIssuer
	hasher   *security.BcryptHasher
	notifier *captureNotifier
	identity *fakeIdentity
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	users := memory.NewUserRepo()
	tokens := security.NewJWTIssuer("test-secret", "auth-service")
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	notifier := &captureNotifier{}
	identity := &fakeIdentity{}

	svc := auth.NewService(users, hasher, tokens, memory.NewCodeStore(10*time.Minute), notifier, identity, auth.Config{})
	return &harness{
		h:        NewAuthHandler(svc, response.WriteError),
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		identity: identity,
	}
}

// seedUser stores a password account directly in the repo.
func (hs *harness) seedUser(t *testing.T, username, email, password string, role domain.Role, status domain.Status) domain.User {
	t.Helper()

	hash, err := hs.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := hs.users.Create(context.Background(), domain.User{
		ID:           username + "-id",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Organization: "CSC",
		Role:         role,
		Status:       status,
		Identity:     domain.Identity{Source: domain.IdentityPassword},
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (hs *harness) sessionFor(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := hs.tokens.IssueSession(auth.SessionClaims{UserID: u.ID, Role: u.Role, Status: u.Status}, time.Hour)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return tok
}

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func mustReadJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode json failed: %v; body=%s", err, rr.Body.String())
	}
}

func post(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, mustJSONBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

type errorBody struct {
	Error struct {
		Code string            `json:"code"`
		Meta map[string]string `json:"meta"`
	} `json:"error"`
}

func requireErrorCode(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d; body=%s", status, rr.Code, rr.Body.String())
	}
	var body errorBody
	mustReadJSON(t, rr, &body)
	if body.Error.Code != code {
		t.Fatalf("expected code %q, got %q", code, body.Error.Code)
	}
	return body
}

// withClaims injects what the Auth middleware would.
func withClaims(req *http.Request, u domain.User) *http.Request {
	return req.WithContext(middleware.WithClaims(req.Context(), auth.SessionClaims{
		UserID: u.ID, Role: u.Role, Status: u.Status,
	}))
}

// withURLParam injects chi URL param (e.g. /users/{id}) into request context.
func withURLParam(req *http.Request, key, val string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, val)

	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}
