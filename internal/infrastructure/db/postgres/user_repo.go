package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const pgUniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

func (r *UserRepo) scanUserRow(row *sql.Row) (domain.User, error) {
	var ur userRow
	if err := row.Scan(ur.scanDest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound()
		}
		return domain.User{}, domain.ErrDBUnavailable(err)
	}
	return ur.toDomain(), nil
}

// mapWriteErr turns unique violations into the conflict the caller reports.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return domain.ErrEmailAlreadyExists()
		case "users_username_key":
			return domain.ErrUsernameAlreadyExists()
		}
		return domain.Wrap(domain.KindConflict, "duplicate", "record already exists", err)
	}
	return domain.ErrDBUnavailable(err)
}

// parseID rejects ids that cannot match the uuid primary key.
func parseID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", domain.ErrMissingField("id")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", domain.ErrUserNotFound()
	}
	return parsed.String(), nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	if n == 0 {
		return domain.ErrUserNotFound()
	}
	return nil
}

// ---------- auth.UserRepo ----------

func (r *UserRepo) FindByEmailOrUsername(ctx context.Context, identifier string) (domain.User, error) {
	identifier = domain.NormalizeEmail(identifier)
	if identifier == "" {
		return domain.User{}, domain.ErrMissingField("identifier")
	}

	const q = `SELECT ` + userColumns + `
FROM users
WHERE email = $1 OR username = $1
ORDER BY (email = $1) DESC
LIMIT 1;`
	return r.scanUserRow(r.db.QueryRowContext(ctx, q, identifier))
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	const q = `SELECT ` + userColumns + `
FROM users
WHERE email = $1
LIMIT 1;`
	return r.scanUserRow(r.db.QueryRowContext(ctx, q, email))
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	username = domain.NormalizeUsername(username)
	if username == "" {
		return domain.User{}, domain.ErrMissingField("username")
	}

	const q = `SELECT ` + userColumns + `
FROM users
WHERE username = $1
LIMIT 1;`
	return r.scanUserRow(r.db.QueryRowContext(ctx, q, username))
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	id, err := parseID(id)
	if err != nil {
		return domain.User{}, err
	}

	const q = `SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1;`
	return r.scanUserRow(r.db.QueryRowContext(ctx, q, id))
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

	const q = `
INSERT INTO users (id, username, email, password_hash, organization, role, status, identity_source, external_id, profile_picture)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING ` + userColumns + `;`

	var ur userRow
	err := r.db.QueryRowContext(ctx, q,
		u.ID, u.Username, u.Email, nullable(u.PasswordHash), u.Organization,
		string(u.Role), string(u.Status), string(u.Identity.Source),
		nullable(u.Identity.ExternalID), u.ProfilePicture,
	).Scan(ur.scanDest()...)
	if err != nil {
		return domain.User{}, mapWriteErr(err)
	}
	return ur.toDomain(), nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID string, newHash string) error {
	userID, err := parseID(userID)
	if err != nil {
		return err
	}
	if newHash == "" {
		return domain.ErrMissingField("password_hash")
	}

	const q = `
UPDATE users
SET password_hash = $2,
    updated_at = NOW()
WHERE id = $1;`
	res, err := r.db.ExecContext(ctx, q, userID, newHash)
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return affectedOne(res)
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.Status) error {
	userID, err := parseID(userID)
	if err != nil {
		return err
	}
	if !domain.IsValidStatus(string(status)) {
		return domain.ErrInvalidStatus(string(status))
	}

	const q = `
UPDATE users
SET status = $2,
    updated_at = NOW()
WHERE id = $1;`
	res, err := r.db.ExecContext(ctx, q, userID, string(status))
	if err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return affectedOne(res)
}

func (r *UserRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
