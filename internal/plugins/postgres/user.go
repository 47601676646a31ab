package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/masterboy376/cphere/internal/core/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if !domain.ValidID(u.ID) {
		return domain.ErrInvalidID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	return err
}

func (r *UserRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !domain.ValidID(id) {
		return nil, domain.ErrInvalidID
	}
	return r.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByUsername matches case-insensitively, like the unique index.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE lower(username) = lower($1)`, username)
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, `WHERE lower(email) = lower($1)`, email)
}

// SearchUsers uses strpos rather than LIKE so query needs no escaping.
func (r *UserRepo) SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE strpos(lower(username), lower($1)) > 0 OR strpos(lower(email), lower($1)) > 0
		ORDER BY lower(username)
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepo) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3 WHERE id = $1
	`, userID, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ResetPassword matches and clears the token in one statement, so a token is
// redeemed at most once.
func (r *UserRepo) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	var u domain.User
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $3
		RETURNING `+userColumns,
		tokenHash, passwordHash, now,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, username, email, password_hash, created_at`

func (r *UserRepo) getUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
