package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID map[string]domain.User

	// injected errors (if set, method returns error)
	findErr      error
	createErrs   []error // consumed in order, one per Create call
	createHook   func(byID map[string]domain.User)
	updatePwdErr error
	setStatusErr error

	createCalls int
	updatedPwd  []struct{ id, hash string }
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]domain.User{}}
}

func (f *fakeUserRepo) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

func (f *fakeUserRepo) FindByEmailOrUsername(ctx context.Context, identifier string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.User{}, f.findErr
	}
	for _, u := range f.byID {
		if u.Email == identifier {
			return u, nil
		}
	}
	for _, u := range f.byID {
		if u.Username == identifier {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.User{}, f.findErr
	}
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.User{}, f.findErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return domain.User{}, f.findErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.createHook != nil {
		f.createHook(f.byID)
	}
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return domain.User{}, err
		}
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return domain.User{}, domain.ErrEmailAlreadyExists()
		}
		if existing.Username == u.Username {
			return domain.User{}, domain.ErrUsernameAlreadyExists()
		}
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, userID string, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updatePwdErr != nil {
		return f.updatePwdErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.PasswordHash = newHash
	f.byID[userID] = u
	f.updatedPwd = append(f.updatedPwd, struct{ id, hash string }{userID, newHash})
	return nil
}

func (f *fakeUserRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	u.Status = status
	f.byID[userID] = u
	return nil
}

type fakeHasher struct {
	hashFn    func(pw string) (string, error)
	compareFn func(hash, pw string) error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Compare(hash string, password string) error {
	if h.compareFn != nil {
		return h.compareFn(hash, password)
	}
	if hash == "hash:"+password {
		return nil
	}
	return errors.New("mismatch")
}

// fakeTokens encodes claims in plain text: "session|uid|role|status" and "reset|email".
// Any token containing "expired" fails with token_expired.
type fakeTokens struct {
	signErr error

	sessionTTLs []time.Duration
	resetTTLs   []time.Duration
}

func (f *fakeTokens) IssueSession(c SessionClaims, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.sessionTTLs = append(f.sessionTTLs, ttl)
	return strings.Join([]string{"session", c.UserID, string(c.Role), string(c.Status)}, "|"), nil
}

func (f *fakeTokens) VerifySession(token string) (SessionClaims, error) {
	if strings.Contains(token, "expired") {
		return SessionClaims{}, domain.ErrTokenExpired()
	}
	parts := strings.Split(token, "|")
	if len(parts) != 4 || parts[0] != "session" {
		return SessionClaims{}, domain.ErrTokenInvalid()
	}
	return SessionClaims{
		UserID: parts[1],
		Role:   domain.Role(parts[2]),
		Status: domain.Status(parts[3]),
	}, nil
}

func (f *fakeTokens) IssueReset(email string, ttl time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.resetTTLs = append(f.resetTTLs, ttl)
	return "reset|" + email, nil
}

func (f *fakeTokens) VerifyReset(token string) (string, error) {
	if strings.Contains(token, "expired") {
		return "", domain.ErrTokenExpired()
	}
	email, ok := strings.CutPrefix(token, "reset|")
	if !ok {
		return "", domain.ErrTokenInvalid()
	}
	return email, nil
}

type fakeCodes struct {
	mu sync.Mutex

	next     []string // codes handed out in order, default "123456"
	byEmail  map[string][]string
	issueErr error
	verifyFn func(email, code string) (bool, error)
}

func newFakeCodes() *fakeCodes {
	return &fakeCodes{byEmail: map[string][]string{}}
}

func (c *fakeCodes) Issue(ctx context.Context, email string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.issueErr != nil {
		return "", c.issueErr
	}
	code := "123456"
	if len(c.next) > 0 {
		code = c.next[0]
		c.next = c.next[1:]
	}
	c.byEmail[email] = append(c.byEmail[email], code)
	return code, nil
}

func (c *fakeCodes) Verify(ctx context.Context, email, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.verifyFn != nil {
		return c.verifyFn(email, code)
	}
	codes := c.byEmail[email]
	for i, v := range codes {
		if v == code {
			c.byEmail[email] = append(codes[:i], codes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type sentCode struct{ email, code string }

type fakeNotifier struct {
	err  error
	sent []sentCode
}

func (n *fakeNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentCode{email, code})
	return nil
}

type fakeIdentity struct {
	ext ExternalIdentity
	err error
}

func (f *fakeIdentity) Verify(ctx context.Context, credential string) (ExternalIdentity, error) {
	if f.err != nil {
		return ExternalIdentity{}, f.err
	}
	return f.ext, nil
}

/*
Service factory for tests
*/

func newSvcForTest(t *testing.T) (*Service, *fakeUserRepo, *fakeHasher, *fakeTokens, *fakeCodes, *fakeNotifier, *fakeIdentity, *[]auditEntry) {
	t.Helper()

	users := newFakeUserRepo()
	hasher := &fakeHasher{}
	tokens := &fakeTokens{}
	codes := newFakeCodes()
	notifier := &fakeNotifier{}
	identity := &fakeIdentity{}

	audits := &[]auditEntry{}
	cfg := Config{
		SessionTTL:      time.Hour,
		OAuthSessionTTL: 24 * time.Hour,
		ResetTokenTTL:   15 * time.Minute,
	}

	svc := NewService(users, hasher, tokens, codes, notifier, identity, cfg).
		WithAudit(func(action string, fields map[string]string) {
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			*audits = append(*audits, auditEntry{action: action, fields: cp})
		})

	if svc == nil {
		t.Fatalf("svc is nil")
	}

	return svc, users, hasher, tokens, codes, notifier, identity, audits
}

func activeOfficer() domain.User {
	return domain.User{
		ID:           "u1",
		Username:     "officer1",
		Email:        "officer1@student.buksu.edu.ph",
		PasswordHash: "hash:pass123",
		Organization: "CSC",
		Role:         domain.RoleOfficer,
		Status:       domain.StatusActive,
		Identity:     domain.Identity{Source: domain.IdentityPassword},
	}
}

/*
Small assertions
*/

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	got := domainCode(err)
	if got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}

func lastAudit(audits *[]auditEntry) (auditEntry, bool) {
	if audits == nil || len(*audits) == 0 {
		return auditEntry{}, false
	}
	return (*audits)[len(*audits)-1], true
}

func requireAuditAction(t *testing.T, audits *[]auditEntry, wantAction string) auditEntry {
	t.Helper()
	e, ok := lastAudit(audits)
	if !ok {
		t.Fatalf("expected audit entry, got none")
	}
	if e.action != wantAction {
		t.Fatalf("expected audit action %q, got %q", wantAction, e.action)
	}
	return e
}

func requireAuditField(t *testing.T, e auditEntry, k, want string) {
	t.Helper()
	got := strings.TrimSpace(e.fields[k])
	if got != want {
		t.Fatalf("expected audit field %q=%q, got %q (all=%v)", k, want, got, e.fields)
	}
}
