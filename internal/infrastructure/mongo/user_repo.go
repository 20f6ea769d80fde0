package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	gomongo "go.mongodb.org/mongo-driver/mongo"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

type userDoc struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	Email          string    `bson:"email"`
	PasswordHash   string    `bson:"password_hash,omitempty"`
	Organization   string    `bson:"organization"`
	Role           string    `bson:"role"`
	Status         string    `bson:"status"`
	IdentitySource string    `bson:"identity_source"`
	ExternalID     string    `bson:"external_id,omitempty"`
	ProfilePicture string    `bson:"profile_picture"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func fromDomain(u domain.User) userDoc {
	return userDoc{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		Organization:   u.Organization,
		Role:           string(u.Role),
		Status:         string(u.Status),
		IdentitySource: string(u.Identity.Source),
		ExternalID:     u.Identity.ExternalID,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.CreatedAt,
	}
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Organization: d.Organization,
		Role:         domain.Role(d.Role),
		Status:       domain.Status(d.Status),
		Identity: domain.Identity{
			Source:     domain.IdentitySource(d.IdentitySource),
			ExternalID: d.ExternalID,
		},
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

// UserRepo stores users as documents. Uniqueness comes from the indexes
// created by Client.EnsureIndexes.
type UserRepo struct {
	c    *Client
	coll *gomongo.Collection
	now  func() time.Time
}

func NewUserRepo(c *Client) *UserRepo {
	return &UserRepo{
		c:    c,
		coll: c.db.Collection(usersCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, gomongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return d.toDomain(), nil
}

func (r *UserRepo) FindByEmailOrUsername(ctx context.Context, identifier string) (domain.User, error) {
	identifier = domain.NormalizeEmail(identifier)
	if identifier == "" {
		return domain.User{}, domain.ErrMissingField("identifier")
	}
	// email first: an $or match has no defined order between two documents
	u, err := r.findOne(ctx, bson.M{"email": identifier})
	if err == nil || !domain.Is(err, "user_not_found") {
		return u, err
	}
	return r.findOne(ctx, bson.M{"username": identifier})
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	username = domain.NormalizeUsername(username)
	if username == "" {
		return domain.User{}, domain.ErrMissingField("username")
	}
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	u.Username = domain.NormalizeUsername(u.Username)
	if u.ID == "" {
		return domain.User{}, domain.ErrMissingField("id")
	}
	if u.Email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}
	if u.Username == "" {
		return domain.User{}, domain.ErrMissingField("username")
	}
	if u.Identity.Source == "" {
		u.Identity.Source = domain.IdentityPassword
	}
	if u.Identity.Source == domain.IdentityPassword && u.PasswordHash == "" {
		return domain.User{}, domain.ErrMissingField("password_hash")
	}
	if u.ProfilePicture == "" {
		u.ProfilePicture = domain.DefaultProfilePicture
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	// BSON datetimes carry millisecond precision
	u.CreatedAt = u.CreatedAt.UTC().Truncate(time.Millisecond)

	if _, err := r.coll.InsertOne(ctx, fromDomain(u)); err != nil {
		return domain.User{}, mapWriteErr(err)
	}
	return u, nil
}

func mapWriteErr(err error) error {
	if gomongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		switch {
		case strings.Contains(msg, emailIndex):
			return domain.ErrEmailAlreadyExists()
		case strings.Contains(msg, usernameIndex):
			return domain.ErrUsernameAlreadyExists()
		}
		return domain.Wrap(domain.KindConflict, "duplicate", "record already exists", err)
	}
	return domain.ErrDBUnavailable(err)
}

func (r *UserRepo) update(ctx context.Context, userID string, set bson.M) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ErrMissingField("user_id")
	}
	set["updated_at"] = r.now()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID string, newHash string) error {
	if newHash == "" {
		return domain.ErrMissingField("password_hash")
	}
	return r.update(ctx, userID, bson.M{"password_hash": newHash})
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	if !domain.IsValidStatus(string(status)) {
		return domain.ErrInvalidStatus(string(status))
	}
	return r.update(ctx, userID, bson.M{"status": string(status)})
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.c.Ping(ctx)
}
