package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
)

// verseData is the subset of a merged verse payload the tests inspect.
type verseData struct {
	Chapter      int    `json:"chapter"`
	Verse        int    `json:"verse"`
	ID           string `json:"_id"`
	Slok         string `json:"slok"`
	Date         string `json:"date"`
	Personalized bool   `json:"personalized"`
}

func (e *testEnv) getVerse(t *testing.T, path, token string) verseData {
	t.Helper()
	resp, env := e.do(t, http.MethodGet, path, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, error %+v", path, resp.StatusCode, env.Error)
	}
	var v verseData
	decodeData(t, env, &v)
	return v
}

func TestChaptersCachedWithETag(t *testing.T) {
	e := newTestEnv(t)

	resp, env := e.do(t, http.MethodGet, "/api/gita/chapters", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var chapters []map[string]interface{}
	decodeData(t, env, &chapters)
	if len(chapters) != 2 {
		t.Errorf("chapters = %v", chapters)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	resp, _ = e.do(t, http.MethodGet, "/api/gita/chapters", "", nil, "If-None-Match", etag)
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", resp.StatusCode)
	}
	if hits := e.up.hits.Load(); hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}
}

func TestChapterValidation(t *testing.T) {
	e := newTestEnv(t)

	resp, env := e.do(t, http.MethodGet, "/api/gita/chapter/2", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var chapter map[string]interface{}
	decodeData(t, env, &chapter)
	if chapter["chapter_number"] != float64(2) {
		t.Errorf("chapter = %v", chapter)
	}

	tests := []struct {
		path string
		code string
	}{
		{"/api/gita/chapter/0", "OUT_OF_RANGE"},
		{"/api/gita/chapter/19", "OUT_OF_RANGE"},
		{"/api/gita/chapter/two", "VALIDATION_ERROR"},
		{"/api/gita/slok/2/73", "OUT_OF_RANGE"},
		{"/api/gita/slok/x/1", "VALIDATION_ERROR"},
		{"/api/gita/2/73", "OUT_OF_RANGE"},
		{"/api/gita/0/1", "OUT_OF_RANGE"},
		{"/api/gita/next/a/b", "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, env := e.do(t, http.MethodGet, tt.path, "", nil)
			expectError(t, resp, env, http.StatusBadRequest, tt.code)
		})
	}
	if hits := e.up.hits.Load(); hits != 1 {
		t.Errorf("invalid requests reached upstream: hits = %d", hits)
	}
}

func TestSlokIsPassedThrough(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(t, http.MethodGet, "/api/gita/slok/2/47", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var raw map[string]interface{}
	decodeData(t, env, &raw)
	if raw["_id"] != "BG2.47" {
		t.Errorf("payload = %v", raw)
	}
	if _, merged := raw["chapter"]; merged {
		t.Error("slok route should not merge coordinates")
	}
}

func TestVerseMergesCoordinates(t *testing.T) {
	e := newTestEnv(t)
	v := e.getVerse(t, "/api/gita/2/47", "")
	if v.Chapter != 2 || v.Verse != 47 || v.ID != "BG2.47" {
		t.Errorf("verse = %+v", v)
	}
}

func TestNextAndPrevious(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		path string
		want verse.Coordinate
	}{
		{"/api/gita/next/1/1", verse.Coordinate{Chapter: 1, Verse: 2}},
		{"/api/gita/next/2/72", verse.Coordinate{Chapter: 3, Verse: 1}},
		{"/api/gita/next/18/78", verse.Coordinate{Chapter: 18, Verse: 78}},
		{"/api/gita/next/2/999", verse.Coordinate{Chapter: 3, Verse: 1}},
		{"/api/gita/next/40/1", verse.Coordinate{Chapter: 18, Verse: 2}},
		{"/api/gita/previous/2/1", verse.Coordinate{Chapter: 1, Verse: 47}},
		{"/api/gita/previous/1/1", verse.Coordinate{Chapter: 1, Verse: 1}},
		{"/api/gita/previous/0/0", verse.Coordinate{Chapter: 1, Verse: 1}},
		{"/api/gita/previous/18/78", verse.Coordinate{Chapter: 18, Verse: 77}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v := e.getVerse(t, tt.path, "")
			if got := (verse.Coordinate{Chapter: v.Chapter, Verse: v.Verse}); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRandomAndReference(t *testing.T) {
	e := newTestEnv(t)

	for i := 0; i < 5; i++ {
		v := e.getVerse(t, "/api/gita/random", "")
		if !verse.Validate(verse.Coordinate{Chapter: v.Chapter, Verse: v.Verse}) {
			t.Errorf("random verse %d:%d is invalid", v.Chapter, v.Verse)
		}
	}

	v := e.getVerse(t, "/api/gita/ref?q=BG%202.47", "")
	if v.Chapter != 2 || v.Verse != 47 {
		t.Errorf("ref = %d:%d", v.Chapter, v.Verse)
	}

	resp, env := e.do(t, http.MethodGet, "/api/gita/ref?q=nonsense", "", nil)
	expectError(t, resp, env, http.StatusBadRequest, "VALIDATION_ERROR")
	resp, env = e.do(t, http.MethodGet, "/api/gita/ref?q=2:99", "", nil)
	expectError(t, resp, env, http.StatusBadRequest, "OUT_OF_RANGE")
}

func TestUpstreamFailureIsNotCached(t *testing.T) {
	e := newTestEnv(t)
	e.up.fail.Store(true)

	resp, env := e.do(t, http.MethodGet, "/api/gita/3/5", "", nil)
	expectError(t, resp, env, http.StatusInternalServerError, "UPSTREAM_ERROR")
	if env.Error != nil && env.Error.Message != "Failed to fetch verse content" {
		t.Errorf("upstream cause leaked to client: %q", env.Error.Message)
	}

	e.up.fail.Store(false)
	v := e.getVerse(t, "/api/gita/3/5", "")
	if v.Chapter != 3 || v.Verse != 5 {
		t.Errorf("verse = %+v", v)
	}
	if hits := e.up.hits.Load(); hits != 2 {
		t.Errorf("upstream hits = %d, want 2", hits)
	}
}

// waitForProgress polls the store until the reader's current verse is want.
func waitForProgress(t *testing.T, e *testEnv, userID string, want verse.Coordinate) store.Progress {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		p, err := e.store.GetProgress(t.Context(), userID)
		if err != nil {
			t.Fatalf("GetProgress: %v", err)
		}
		if p.Current == want {
			return p
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress = %s, want %s", p.Current, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuthenticatedReadRecordsProgress(t *testing.T) {
	e := newTestEnv(t)
	token, userID := e.signup(t, "Arjuna", "arjuna@kuru.org")

	e.getVerse(t, "/api/gita/2/47", token)
	p := waitForProgress(t, e, userID, verse.Coordinate{Chapter: 2, Verse: 47})
	if p.TotalVersesRead != 1 || p.StreakCount != 1 {
		t.Errorf("progress = %+v", p)
	}

	e.getVerse(t, "/api/gita/next/2/47", token)
	p = waitForProgress(t, e, userID, verse.Coordinate{Chapter: 2, Verse: 48})
	if p.Last == nil || *p.Last != (verse.Coordinate{Chapter: 2, Verse: 47}) {
		t.Errorf("last = %v", p.Last)
	}
}

func TestInvalidTokenIsIgnoredOnOptionalRoutes(t *testing.T) {
	e := newTestEnv(t)
	v := e.getVerse(t, "/api/gita/1/1", "not-a-token")
	if v.Chapter != 1 || v.Verse != 1 {
		t.Errorf("verse = %+v", v)
	}
	if stats := e.srv.recorder.Stats(); stats.Recorded != 0 || stats.Queued != 0 {
		t.Errorf("anonymous read queued progress: %+v", stats)
	}
}

func TestVerseOfDay(t *testing.T) {
	e := newTestEnv(t)
	now := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	e.clock.Set(now)
	token, userID := e.signup(t, "Arjuna", "arjuna@kuru.org")

	global := e.getVerse(t, "/api/gita/verse-of-day", "")
	want := verse.Daily("", now)
	if global.Chapter != want.Chapter || global.Verse != want.Verse {
		t.Errorf("global = %d:%d, want %s", global.Chapter, global.Verse, want)
	}
	if global.Date != "2026-10-15" || global.Personalized {
		t.Errorf("global = %+v", global)
	}
	if again := e.getVerse(t, "/api/user/verse-of-day/global", ""); again.Chapter != global.Chapter || again.Verse != global.Verse {
		t.Errorf("global routes disagree: %+v vs %+v", again, global)
	}

	personal := e.getVerse(t, "/api/gita/verse-of-day", token)
	wantPersonal := verse.Daily(userID, now)
	if personal.Chapter != wantPersonal.Chapter || personal.Verse != wantPersonal.Verse || !personal.Personalized {
		t.Errorf("personal = %+v, want %s", personal, wantPersonal)
	}
	stored := e.getVerse(t, "/api/user/verse-of-day", token)
	if stored.Chapter != personal.Chapter || stored.Verse != personal.Verse || stored.Date != "2026-10-15" {
		t.Errorf("stored = %+v, personal = %+v", stored, personal)
	}

	resp, env := e.do(t, http.MethodGet, "/api/user/verse-of-day", "", nil)
	expectError(t, resp, env, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestVerseOfDayLeavesProgress(t *testing.T) {
	e := newTestEnv(t)
	e.clock.Set(time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC))
	token, userID := e.signup(t, "Arjuna", "arjuna@kuru.org")

	resp, env := e.do(t, http.MethodPost, "/api/user/progress", token, ProgressRequest{Chapter: 5, Verse: 12})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress status = %d, error %+v", resp.StatusCode, env.Error)
	}

	for _, path := range []string{"/api/user/verse-of-day", "/api/gita/verse-of-day", "/api/user/verse-of-day/global"} {
		e.getVerse(t, path, token)
	}
	if stats := e.srv.recorder.Stats(); stats.Recorded != 0 || stats.Queued != 0 {
		t.Errorf("verse of the day queued progress: %+v", stats)
	}
	p, err := e.store.GetProgress(t.Context(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Current != (verse.Coordinate{Chapter: 5, Verse: 12}) || p.TotalVersesRead != 1 {
		t.Errorf("progress = %+v, want 5:12 after one read", p)
	}
}
