package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type (
	repoer interface {
		CreateUser(ctx context.Context, name, passwordHash string) (*User, error)
		GetUserByName(ctx context.Context, name string) (*User, error)
		CreateSession(ctx context.Context, userID uuid.UUID, expiresAt *time.Time) (*Session, error)
		TouchSession(ctx context.Context, id uuid.UUID, expiresAt *time.Time) (uuid.UUID, error)
		DeleteSession(ctx context.Context, id uuid.UUID) error
		DeleteExpiredSessions(ctx context.Context) (int64, error)
	}

	repo struct {
		pool *pgxpool.Pool
	}
)

func NewRepo(pool *pgxpool.Pool) repoer {
	return &repo{pool: pool}
}

func (r *repo) CreateUser(ctx context.Context, name, passwordHash string) (*User, error) {
	user := &User{ID: uuid.New(), Name: name, PasswordHash: passwordHash}

	stmt := `
	INSERT INTO users (id, name, password)
	VALUES ($1, $2, $3)`

	if _, err := r.pool.Exec(ctx, stmt, user.ID, user.Name, user.PasswordHash); err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

func (r *repo) GetUserByName(ctx context.Context, name string) (*User, error) {
	stmt := `
	SELECT id, name, password
	FROM users
	WHERE name = $1
	LIMIT 1`

	var user User
	err := r.pool.QueryRow(ctx, stmt, name).Scan(&user.ID, &user.Name, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) CreateSession(ctx context.Context, userID uuid.UUID, expiresAt *time.Time) (*Session, error) {
	session := &Session{ID: uuid.New(), UserID: userID, ExpiresAt: expiresAt}

	stmt := `
	INSERT INTO sessions (id, user_id, expires_at)
	VALUES ($1, $2, $3)`

	if _, err := r.pool.Exec(ctx, stmt, session.ID, session.UserID, session.ExpiresAt); err != nil {
		return nil, mapError(err)
	}
	return session, nil
}

// TouchSession moves the expiry of a live session and returns its user.
// Sessions without expiry stay that way when expiresAt is nil.
func (r *repo) TouchSession(ctx context.Context, id uuid.UUID, expiresAt *time.Time) (uuid.UUID, error) {
	stmt := `
	UPDATE sessions
	SET expires_at = $2
	WHERE id = $1 AND (expires_at IS NULL OR expires_at > NOW())
	RETURNING user_id`

	var userID uuid.UUID
	if err := r.pool.QueryRow(ctx, stmt, id, expiresAt).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrSessionNotFound
		}
		return uuid.Nil, err
	}
	return userID, nil
}

func (r *repo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	stmt := `DELETE FROM sessions WHERE id = $1`

	result, err := r.pool.Exec(ctx, stmt, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *repo) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	stmt := `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// mapError turns Postgres constraint violations into a ConflictError
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505":
		return &ConflictError{Violation: "unique"}
	case "23503":
		return &ConflictError{Violation: "key"}
	case "23502":
		return &ConflictError{Violation: "null"}
	case "23514":
		return &ConflictError{Violation: "check"}
	default:
		return &ConflictError{Violation: "other"}
	}
}
