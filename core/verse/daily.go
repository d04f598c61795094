package verse

import (
	"time"
	"unicode/utf16"
)

// DateLayout is the canonical calendar-date rendering used in daily seeds.
// Changing it changes every user's daily verse.
const DateLayout = "2006-01-02"

// DateString renders the UTC calendar date of t in DateLayout.
func DateString(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Seed builds the daily seed: the user ID immediately followed by the date
// string, or the date string alone for anonymous callers.
func Seed(userID string, day time.Time) string {
	return userID + DateString(day)
}

// SeedHash is the multiply-by-31 rolling hash over the UTF-16 code units of
// seed, truncated to a signed 32-bit integer at every step.
func SeedHash(seed string) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(seed)) {
		h = (h << 5) - h + int32(unit)
	}
	return h
}

// Select maps a seed to a coordinate. The same seed always yields the same
// coordinate. The verse is derived from the hash shifted right by 8 bits so
// it is not correlated with the chapter choice.
func Select(seed string) Coordinate {
	h := SeedHash(seed)
	chapter := int(abs64(int64(h))%Chapters) + 1
	verseHash := abs64(int64(h >> 8))
	return Coordinate{
		Chapter: chapter,
		Verse:   int(verseHash%int64(mustCount(chapter))) + 1,
	}
}

// Daily returns the verse of the day for userID on the UTC date of now.
// An empty userID selects the global verse of the day.
func Daily(userID string, now time.Time) Coordinate {
	return Select(Seed(userID, now))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
