package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// password_hash is server-only; client queries select the other columns.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  username TEXT,
  email TEXT NOT NULL UNIQUE,
  image TEXT,
  password_hash TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type accountRow struct {
	entity.User
	PasswordHash string `db:"password_hash"`
}

// UpsertAccount inserts the row or replaces the visible columns and the hash
// of the row with the same email.
func (r *UserRepo) UpsertAccount(ctx context.Context, u entity.User, passwordHash string) error {
	const q = `INSERT INTO users (username, email, image, password_hash)
		VALUES (:username, :email, :image, :password_hash)
		ON CONFLICT (email) DO UPDATE SET
		  username = EXCLUDED.username,
		  image = EXCLUDED.image,
		  password_hash = EXCLUDED.password_hash,
		  updated_at = NOW()`
	_, err := r.db.NamedExecContext(ctx, q, accountRow{User: u, PasswordHash: passwordHash})
	return err
}

// GetByEmail returns the visible columns of a row, or nil when there is none.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT COALESCE(username, '') AS username, email, COALESCE(image, '') AS image
	  FROM users WHERE email=$1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// PasswordHash returns the stored hash for email or "".
func (r *UserRepo) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash sql.NullString
	err := r.db.GetContext(ctx, &hash, `SELECT password_hash FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash.String, err
}

// Delete removes the row for email.
func (r *UserRepo) Delete(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE email=$1`, email)
	return err
}
