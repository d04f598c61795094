package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/internal/sqlite"
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a user and its default progress row. A taken email
// yields an *errors.ConflictError.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	u := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	if u.Email == "" {
		return User{}, errors.NewValidation("email", "email is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, toMillis(u.CreatedAt),
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return User{}, errors.NewConflict("user", "email already registered")
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO progress (user_id) VALUES (?)`, u.ID); err != nil {
		return User{}, fmt.Errorf("create progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UserByID returns the user with id or an *errors.NotFoundError.
func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row, id)
}

// UserByEmail looks a user up by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	email = NormalizeEmail(email)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row, email)
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows, "")
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, key string) (User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, errors.NewNotFound("user", key)
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}
