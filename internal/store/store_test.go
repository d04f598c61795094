package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
)

// stepClock returns a time that advances by one millisecond per call so
// insertion order is reflected in created_at.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "gita.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	clock := &stepClock{now: time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Store, email string) User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), "Arjuna", email, "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gita.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open pass %d: %v", i, err)
		}
		if err := s.Ping(context.Background()); err != nil {
			t.Fatalf("Ping: %v", err)
		}
		s.Close()
	}
}

func TestCreateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "  Arjuna ", "  Arjuna@Kuru.org ", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" || u.Name != "Arjuna" || u.Email != "arjuna@kuru.org" {
		t.Errorf("unexpected user: %+v", u)
	}

	byEmail, err := s.UserByEmail(ctx, "ARJUNA@kuru.org")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.PasswordHash != "hash" {
		t.Errorf("UserByEmail = %+v", byEmail)
	}

	byID, err := s.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if !byID.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("CreatedAt round trip: %v != %v", byID.CreatedAt, u.CreatedAt)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "a@b.co")

	_, err := s.CreateUser(context.Background(), "Other", "A@B.CO", "hash")
	var conflict *errors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !errors.Is(err, errors.ErrAlreadyExists) {
		t.Error("ConflictError should unwrap to ErrAlreadyExists")
	}
}

func TestUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UserByID(context.Background(), "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = s.UserByEmail(context.Background(), "nobody@x.io")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	newTestUser(t, s, "one@x.io")
	newTestUser(t, s, "two@x.io")

	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Email != "one@x.io" {
		t.Errorf("ListUsers = %+v", users)
	}
}

func TestDefaultProgress(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")

	p, err := s.GetProgress(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if p.Current != verse.First() || p.Last != nil || p.StreakCount != 0 || p.LastReadAt != nil {
		t.Errorf("default progress = %+v", p)
	}

	_, err = s.GetProgress(context.Background(), "no-such-user")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProgress for unknown user error = %v", err)
	}
}

func TestRecordProgress(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")
	ctx := context.Background()
	day1 := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	p, err := s.RecordProgress(ctx, u.ID, verse.Coordinate{Chapter: 2, Verse: 47}, day1)
	if err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if p.Current != (verse.Coordinate{Chapter: 2, Verse: 47}) {
		t.Errorf("Current = %v", p.Current)
	}
	if p.Last == nil || *p.Last != verse.First() {
		t.Errorf("Last = %v, want 1:1", p.Last)
	}
	if p.StreakCount != 1 || p.TotalVersesRead != 1 {
		t.Errorf("first read: streak=%d total=%d", p.StreakCount, p.TotalVersesRead)
	}

	p, err = s.RecordProgress(ctx, u.ID, verse.Coordinate{Chapter: 2, Verse: 48}, day1.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if p.StreakCount != 1 || p.TotalVersesRead != 2 || p.Last.Verse != 47 {
		t.Errorf("same day: %+v", p)
	}

	stored, err := s.GetProgress(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Current != p.Current || *stored.Last != *p.Last || !stored.LastReadAt.Equal(*p.LastReadAt) {
		t.Errorf("stored progress %+v differs from returned %+v", stored, p)
	}
}

func TestRecordProgressStreak(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")
	ctx := context.Background()
	c := verse.Coordinate{Chapter: 1, Verse: 2}

	steps := []struct {
		at   time.Time
		want int
	}{
		{time.Date(2026, 10, 13, 23, 59, 0, 0, time.UTC), 1},
		{time.Date(2026, 10, 14, 0, 1, 0, 0, time.UTC), 2},
		{time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC), 3},
		{time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC), 3},
		{time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC), 1},
	}
	for i, step := range steps {
		p, err := s.RecordProgress(ctx, u.ID, c, step.at)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if p.StreakCount != step.want {
			t.Errorf("step %d: streak = %d, want %d", i, p.StreakCount, step.want)
		}
		if p.TotalVersesRead != i+1 {
			t.Errorf("step %d: total = %d", i, p.TotalVersesRead)
		}
	}
}

func TestRecordProgressErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordProgress(ctx, "ghost", verse.First(), time.Now())
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown user: got %v", err)
	}

	u := newTestUser(t, s, "a@b.co")
	_, err = s.RecordProgress(ctx, u.ID, verse.Coordinate{Chapter: 19, Verse: 1}, time.Now())
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("invalid coordinate: got %v", err)
	}
}

func TestNextStreak(t *testing.T) {
	base := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	ptr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name   string
		streak int
		last   *time.Time
		now    time.Time
		want   int
	}{
		{"first read", 0, nil, base, 1},
		{"same day", 4, ptr(base), base.Add(time.Hour), 4},
		{"same day zero streak", 0, ptr(base), base, 1},
		{"next day", 4, ptr(base), base.Add(24 * time.Hour), 5},
		{"next day just after midnight", 2, ptr(base), time.Date(2026, 10, 16, 0, 0, 1, 0, time.UTC), 3},
		{"gap", 9, ptr(base), base.Add(48 * time.Hour), 1},
		{"non-UTC input", 1, ptr(base), time.Date(2026, 10, 16, 1, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStreak(tt.streak, tt.last, tt.now); got != tt.want {
				t.Errorf("NextStreak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBookmarks(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")
	ctx := context.Background()

	for _, c := range []verse.Coordinate{{Chapter: 2, Verse: 47}, {Chapter: 18, Verse: 66}, {Chapter: 4, Verse: 7}} {
		b, err := s.AddBookmark(ctx, Bookmark{UserID: u.ID, Chapter: c.Chapter, Verse: c.Verse, Translation: " text "})
		if err != nil {
			t.Fatalf("AddBookmark %v: %v", c, err)
		}
		if len(b.ID) != 26 || b.Translation != "text" {
			t.Errorf("AddBookmark returned %+v", b)
		}
	}

	list, err := s.ListBookmarks(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListBookmarks: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Coordinate() != (verse.Coordinate{Chapter: 4, Verse: 7}) || list[2].Chapter != 2 {
		t.Errorf("bookmarks not newest first: %+v", list)
	}

	if err := s.RemoveBookmark(ctx, u.ID, verse.Coordinate{Chapter: 18, Verse: 66}); err != nil {
		t.Fatalf("RemoveBookmark: %v", err)
	}
	err = s.RemoveBookmark(ctx, u.ID, verse.Coordinate{Chapter: 18, Verse: 66})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second remove: got %v", err)
	}

	n, err := s.ClearBookmarks(ctx, u.ID)
	if err != nil || n != 2 {
		t.Errorf("ClearBookmarks = %d, %v", n, err)
	}
	list, _ = s.ListBookmarks(ctx, u.ID)
	if list == nil || len(list) != 0 {
		t.Errorf("after clear: %#v", list)
	}
}

func TestAddBookmarkRejectsDuplicatesAndInvalid(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")
	other := newTestUser(t, s, "c@d.co")
	ctx := context.Background()
	b := Bookmark{UserID: u.ID, Chapter: 2, Verse: 47}

	if _, err := s.AddBookmark(ctx, b); err != nil {
		t.Fatal(err)
	}
	_, err := s.AddBookmark(ctx, b)
	var conflict *errors.ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("duplicate: got %v", err)
	}

	b.UserID = other.ID
	if _, err := s.AddBookmark(ctx, b); err != nil {
		t.Errorf("same verse for another user: %v", err)
	}

	_, err = s.AddBookmark(ctx, Bookmark{UserID: u.ID, Chapter: 1, Verse: 48})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("invalid verse: got %v", err)
	}

	_, err = s.AddBookmark(ctx, Bookmark{UserID: "no-such-user", Chapter: 2, Verse: 47})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddFeedback(ctx, Feedback{Name: "A", Email: "A@B.co", Body: "lovely"})
	if err != nil {
		t.Fatalf("AddFeedback: %v", err)
	}
	if first.ID == "" || first.Email != "a@b.co" {
		t.Errorf("AddFeedback = %+v", first)
	}
	if _, err := s.AddFeedback(ctx, Feedback{Name: "B", Email: "b@b.co", UserID: "u1", Body: "more"}); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListFeedback(ctx, 0)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(all) != 2 || all[0].UserID != "u1" || all[1].UserID != "" {
		t.Errorf("ListFeedback = %+v", all)
	}
	one, _ := s.ListFeedback(ctx, 1)
	if len(one) != 1 {
		t.Errorf("limit ignored: %d", len(one))
	}
}

func TestAssignDailyVerse(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")
	ctx := context.Background()
	morning := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)

	dv, err := s.AssignDailyVerse(ctx, u.ID, morning)
	if err != nil {
		t.Fatalf("AssignDailyVerse: %v", err)
	}
	if dv.Date != "2026-10-15" || dv.Verse != verse.Daily(u.ID, morning) {
		t.Errorf("AssignDailyVerse = %+v", dv)
	}

	// A stored assignment wins over a recomputation.
	if _, err := s.db.Exec(`UPDATE daily_verses SET chapter = 9, verse = 22 WHERE user_id = ?`, u.ID); err != nil {
		t.Fatal(err)
	}
	again, err := s.AssignDailyVerse(ctx, u.ID, morning.Add(20*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if again.Verse != (verse.Coordinate{Chapter: 9, Verse: 22}) {
		t.Errorf("stored assignment not returned: %+v", again)
	}

	next, err := s.AssignDailyVerse(ctx, u.ID, morning.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if next.Date != "2026-10-16" {
		t.Errorf("next day date = %s", next.Date)
	}
}

func TestConcurrentProgress(t *testing.T) {
	s := newTestStore(t)
	u := newTestUser(t, s, "a@b.co")
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if _, err := s.RecordProgress(ctx, u.ID, verse.Coordinate{Chapter: 2, Verse: v}, now); err != nil {
				t.Errorf("RecordProgress: %v", err)
			}
		}(i)
	}
	wg.Wait()

	p, err := s.GetProgress(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalVersesRead != 20 {
		t.Errorf("TotalVersesRead = %d, want 20", p.TotalVersesRead)
	}
}
