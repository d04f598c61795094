package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
)

// GetProgress returns the reader's progress. A user without a row gets the
// default position 1:1 with no streak; an unknown user yields an
// *errors.NotFoundError.
func (s *Store) GetProgress(ctx context.Context, userID string) (Progress, error) {
	if err := requireUser(ctx, s.db, userID); err != nil {
		return Progress{}, err
	}
	p, err := getProgress(ctx, s.db, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{UserID: userID, Current: verse.First()}, nil
	}
	return p, err
}

// RecordProgress moves the reader to c at now. The previous current verse
// becomes Last, TotalVersesRead grows by one and the streak advances by
// UTC calendar day.
func (s *Store) RecordProgress(ctx context.Context, userID string, c verse.Coordinate, now time.Time) (Progress, error) {
	if !verse.Validate(c) {
		return Progress{}, errors.NewValidation("verse", "invalid chapter or verse")
	}
	now = now.UTC().Truncate(time.Millisecond)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Progress{}, fmt.Errorf("record progress: %w", err)
	}
	defer tx.Rollback()

	if err := requireUser(ctx, tx, userID); err != nil {
		return Progress{}, err
	}

	prev, err := getProgress(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		prev = Progress{UserID: userID, Current: verse.First()}
	} else if err != nil {
		return Progress{}, err
	}

	last := prev.Current
	next := Progress{
		UserID:          userID,
		Current:         c,
		Last:            &last,
		StreakCount:     NextStreak(prev.StreakCount, prev.LastReadAt, now),
		TotalVersesRead: prev.TotalVersesRead + 1,
		LastReadAt:      &now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress (user_id, current_chapter, current_verse, last_chapter, last_verse,
		                      streak_count, total_verses_read, last_read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		  current_chapter = excluded.current_chapter,
		  current_verse = excluded.current_verse,
		  last_chapter = excluded.last_chapter,
		  last_verse = excluded.last_verse,
		  streak_count = excluded.streak_count,
		  total_verses_read = excluded.total_verses_read,
		  last_read_at = excluded.last_read_at`,
		userID, c.Chapter, c.Verse, last.Chapter, last.Verse,
		next.StreakCount, next.TotalVersesRead, toMillis(now),
	)
	if err != nil {
		return Progress{}, fmt.Errorf("record progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Progress{}, fmt.Errorf("record progress: %w", err)
	}
	return next, nil
}

// NextStreak computes the streak after a read at now given the previous
// streak and read time. Reads on the same UTC day keep the streak, a read
// on the following day extends it and any longer gap restarts it at 1.
// The first read ever starts the streak at 1.
func NextStreak(streak int, lastReadAt *time.Time, now time.Time) int {
	if lastReadAt == nil {
		return 1
	}
	switch days := dayNumber(now) - dayNumber(*lastReadAt); {
	case days == 0:
		if streak < 1 {
			return 1
		}
		return streak
	case days == 1:
		return streak + 1
	default:
		return 1
	}
}

// dayNumber counts whole UTC days since the Unix epoch.
func dayNumber(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireUser yields an *errors.NotFoundError when userID has no account.
func requireUser(ctx context.Context, q queryRower, userID string) error {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFound("user", userID)
	}
	return errors.Wrapf(err, "look up user %s", userID)
}

func getProgress(ctx context.Context, q queryRower, userID string) (Progress, error) {
	var (
		p                      Progress
		lastChapter, lastVerse sql.NullInt64
		lastRead               sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT current_chapter, current_verse, last_chapter, last_verse,
		       streak_count, total_verses_read, last_read_at
		  FROM progress WHERE user_id = ?`, userID,
	).Scan(&p.Current.Chapter, &p.Current.Verse, &lastChapter, &lastVerse,
		&p.StreakCount, &p.TotalVersesRead, &lastRead)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Progress{}, err
		}
		return Progress{}, fmt.Errorf("get progress: %w", err)
	}
	p.UserID = userID
	if lastChapter.Valid && lastVerse.Valid {
		p.Last = &verse.Coordinate{Chapter: int(lastChapter.Int64), Verse: int(lastVerse.Int64)}
	}
	if lastRead.Valid {
		t := fromMillis(lastRead.Int64)
		p.LastReadAt = &t
	}
	return p, nil
}
