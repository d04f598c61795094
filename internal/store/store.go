// Package store persists users, reading progress, bookmarks, feedback and
// per-user daily verse assignments in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/sqlite"
	"github.com/FocuswithJustin/GitaCompanion/internal/store/migrations"
)

// User is a registered reader.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Progress is a reader's position and streak.
type Progress struct {
	UserID          string            `json:"-"`
	Current         verse.Coordinate  `json:"current"`
	Last            *verse.Coordinate `json:"last,omitempty"`
	StreakCount     int               `json:"streak_count"`
	TotalVersesRead int               `json:"total_verses_read"`
	LastReadAt      *time.Time        `json:"last_read_at,omitempty"`
}

// Bookmark is a saved verse.
type Bookmark struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Chapter     int       `json:"chapter"`
	Verse       int       `json:"verse"`
	Slok        string    `json:"slok,omitempty"`
	Translation string    `json:"translation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Coordinate returns the bookmarked verse.
func (b Bookmark) Coordinate() verse.Coordinate {
	return verse.Coordinate{Chapter: b.Chapter, Verse: b.Verse}
}

// Feedback is a message left through the feedback form.
type Feedback struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	UserID    string    `json:"user_id,omitempty"`
	Body      string    `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

// DailyVerse is the verse assigned to a user for one UTC date.
type DailyVerse struct {
	UserID string           `json:"-"`
	Date   string           `json:"date"`
	Verse  verse.Coordinate `json:"verse"`
}

// UserStore manages accounts.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ProgressStore tracks reading position and streaks.
type ProgressStore interface {
	GetProgress(ctx context.Context, userID string) (Progress, error)
	RecordProgress(ctx context.Context, userID string, c verse.Coordinate, now time.Time) (Progress, error)
}

// BookmarkStore manages saved verses.
type BookmarkStore interface {
	AddBookmark(ctx context.Context, b Bookmark) (Bookmark, error)
	RemoveBookmark(ctx context.Context, userID string, c verse.Coordinate) error
	ListBookmarks(ctx context.Context, userID string) ([]Bookmark, error)
	ClearBookmarks(ctx context.Context, userID string) (int, error)
}

// FeedbackStore records feedback messages.
type FeedbackStore interface {
	AddFeedback(ctx context.Context, f Feedback) (Feedback, error)
	ListFeedback(ctx context.Context, limit int) ([]Feedback, error)
}

// DailyVerseStore holds per-user daily verse assignments.
type DailyVerseStore interface {
	AssignDailyVerse(ctx context.Context, userID string, now time.Time) (DailyVerse, error)
}

// Store implements every store interface on one SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ UserStore       = (*Store)(nil)
	_ ProgressStore   = (*Store)(nil)
	_ BookmarkStore   = (*Store)(nil)
	_ FeedbackStore   = (*Store)(nil)
	_ DailyVerseStore = (*Store)(nil)
)

// Open opens the database at path and applies the embedded migrations.
// The parent directory is created if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); path != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers so concurrent progress updates
	// never see SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := sqlite.Migrate(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
