package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/sqlite"
)

// AddBookmark saves a verse for b.UserID. Bookmarking the same verse twice
// yields an *errors.ConflictError and an unknown user an
// *errors.NotFoundError.
func (s *Store) AddBookmark(ctx context.Context, b Bookmark) (Bookmark, error) {
	if !verse.Validate(b.Coordinate()) {
		return Bookmark{}, errors.NewValidation("verse", "invalid chapter or verse")
	}
	if err := requireUser(ctx, s.db, b.UserID); err != nil {
		return Bookmark{}, err
	}
	b.ID = ulid.Make().String()
	b.Slok = strings.TrimSpace(b.Slok)
	b.Translation = strings.TrimSpace(b.Translation)
	b.CreatedAt = s.now().UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, chapter, verse, slok, translation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Chapter, b.Verse, b.Slok, b.Translation, toMillis(b.CreatedAt),
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return Bookmark{}, errors.NewConflict("bookmark", "verse already bookmarked")
		}
		if sqlite.IsForeignKeyViolation(err) {
			return Bookmark{}, &errors.NotFoundError{Resource: "user", ID: b.UserID, Err: err}
		}
		return Bookmark{}, fmt.Errorf("add bookmark: %w", err)
	}
	return b, nil
}

// RemoveBookmark deletes the bookmark for c. A missing bookmark yields an
// *errors.NotFoundError.
func (s *Store) RemoveBookmark(ctx context.Context, userID string, c verse.Coordinate) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = ? AND chapter = ? AND verse = ?`,
		userID, c.Chapter, c.Verse)
	if err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove bookmark: %w", err)
	}
	if n == 0 {
		return errors.NewNotFound("bookmark", c.String())
	}
	return nil
}

// ListBookmarks returns the user's bookmarks, newest first. An unknown user
// yields an *errors.NotFoundError.
func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]Bookmark, error) {
	if err := requireUser(ctx, s.db, userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, chapter, verse, slok, translation, created_at
		  FROM bookmarks
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []Bookmark{}
	for rows.Next() {
		var b Bookmark
		var created int64
		if err := rows.Scan(&b.ID, &b.UserID, &b.Chapter, &b.Verse, &b.Slok, &b.Translation, &created); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.CreatedAt = fromMillis(created)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// ClearBookmarks deletes all of the user's bookmarks and reports how many
// were removed.
func (s *Store) ClearBookmarks(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear bookmarks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear bookmarks: %w", err)
	}
	return int(n), nil
}
