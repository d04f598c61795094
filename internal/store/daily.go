package store

import (
	"context"
	"fmt"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/verse"
)

// AssignDailyVerse returns the user's verse for the UTC date of now. The
// first call on a date stores the selector's pick; later calls return the
// stored assignment unchanged.
func (s *Store) AssignDailyVerse(ctx context.Context, userID string, now time.Time) (DailyVerse, error) {
	date := verse.DateString(now)
	pick := verse.Daily(userID, now)

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO daily_verses (user_id, date, chapter, verse)
		VALUES (?, ?, ?, ?)`, userID, date, pick.Chapter, pick.Verse,
	); err != nil {
		return DailyVerse{}, fmt.Errorf("assign daily verse: %w", err)
	}

	dv := DailyVerse{UserID: userID, Date: date}
	err := s.db.QueryRowContext(ctx,
		`SELECT chapter, verse FROM daily_verses WHERE user_id = ? AND date = ?`, userID, date,
	).Scan(&dv.Verse.Chapter, &dv.Verse.Verse)
	if err != nil {
		return DailyVerse{}, fmt.Errorf("load daily verse: %w", err)
	}
	return dv, nil
}
