package memory

import (
	"context"
	"sync"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

// UserRepo is the in-process credential store used for local runs and tests.
// Uniqueness of email and username is enforced under the write lock.
type UserRepo struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byEmail    map[string]string // email -> userID
	byUsername map[string]string // username -> userID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:       make(map[string]domain.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (r *UserRepo) FindByEmailOrUsername(ctx context.Context, identifier string) (domain.User, error) {
	identifier = domain.NormalizeEmail(identifier)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byEmail[identifier]; ok {
		return r.byID[id], nil
	}
	if id, ok := r.byUsername[identifier]; ok {
		return r.byID[id], nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[domain.NormalizeUsername(username)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return r.byID[id], nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	u.Email = domain.NormalizeEmail(u.Email)
	u.Username = domain.NormalizeUsername(u.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	if _, exists := r.byUsername[u.Username]; exists {
		return domain.User{}, domain.ErrUsernameAlreadyExists()
	}

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	r.byUsername[u.Username] = u.ID
	return u, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID string, newHash string) error {
	if newHash == "" {
		return domain.ErrMissingField("password_hash")
	}
	return r.update(userID, func(u *domain.User) { u.PasswordHash = newHash })
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	if !domain.IsValidStatus(string(status)) {
		return domain.ErrInvalidStatus(string(status))
	}
	return r.update(userID, func(u *domain.User) { u.Status = status })
}

// Ping satisfies the readiness probe.
func (r *UserRepo) Ping(ctx context.Context) error { return nil }

func (r *UserRepo) update(userID string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[userID]
	if !ok {
		return domain.ErrUserNotFound()
	}
	fn(&u)
	r.byID[userID] = u
	return nil
}
