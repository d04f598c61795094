package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// AddFeedback stores a feedback message. Fields are expected to be
// validated by the caller.
func (s *Store) AddFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	f.ID = ulid.Make().String()
	f.Email = NormalizeEmail(f.Email)
	f.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	var userID sql.NullString
	if f.UserID != "" {
		userID = sql.NullString{String: f.UserID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, name, email, user_id, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Email, userID, f.Body, toMillis(f.CreatedAt),
	)
	if err != nil {
		return Feedback{}, fmt.Errorf("add feedback: %w", err)
	}
	return f, nil
}

// ListFeedback returns up to limit messages, newest first. A limit of zero
// or less returns everything.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, user_id, body, created_at
		  FROM feedback
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		var userID sql.NullString
		var created int64
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &userID, &f.Body, &created); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.UserID = userID.String
		f.CreatedAt = fromMillis(created)
		out = append(out, f)
	}
	return out, rows.Err()
}
