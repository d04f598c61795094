package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
)

func newSeededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "gita.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	u, err := s.CreateUser(ctx, "Arjuna", "arjuna@kuru.org", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	day := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	if _, err := s.RecordProgress(ctx, u.ID, verse.Coordinate{Chapter: 2, Verse: 47}, day); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	if _, err := s.AddBookmark(ctx, store.Bookmark{UserID: u.ID, Chapter: 2, Verse: 47, Translation: "You have a right to action alone"}); err != nil {
		t.Fatalf("AddBookmark: %v", err)
	}
	return s
}

func TestBuild(t *testing.T) {
	s := newSeededStore(t)
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	doc, err := Build(context.Background(), s, "ARJUNA@kuru.org", now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.Version != FormatVersion || !doc.ExportedAt.Equal(now) {
		t.Errorf("header = %d %v", doc.Version, doc.ExportedAt)
	}
	if doc.User.Email != "arjuna@kuru.org" {
		t.Errorf("user = %+v", doc.User)
	}
	if doc.Progress.Current != (verse.Coordinate{Chapter: 2, Verse: 47}) || doc.Progress.StreakCount != 1 {
		t.Errorf("progress = %+v", doc.Progress)
	}
	if len(doc.Bookmarks) != 1 || doc.Bookmarks[0].Verse != 47 {
		t.Errorf("bookmarks = %+v", doc.Bookmarks)
	}

	_, err = Build(context.Background(), s, "karna@kuru.org", now)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown email error = %v", err)
	}
}

func TestWriteRead(t *testing.T) {
	s := newSeededStore(t)
	doc, err := Build(context.Background(), s, "arjuna@kuru.org", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"arjuna.json", "nested/dir/arjuna.json.xz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Write(path, doc); err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.User.ID != doc.User.ID || len(got.Bookmarks) != 1 || got.Progress.TotalVersesRead != 1 {
				t.Errorf("round trip = %+v", got)
			}
		})
	}
}

func TestWriteCompressesBySuffix(t *testing.T) {
	dir := t.TempDir()
	doc := Document{Version: FormatVersion, Bookmarks: []store.Bookmark{}}

	plain := filepath.Join(dir, "a.json")
	packed := filepath.Join(dir, "a.json.xz")
	if err := Write(plain, doc); err != nil {
		t.Fatal(err)
	}
	if err := Write(packed, doc); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(plain)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("{")) {
		t.Errorf("plain export starts with %q", data[:1])
	}
	data, err = os.ReadFile(packed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
		t.Error("compressed export lacks the xz magic")
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"text", "hello"},
		{"bad json", "{"},
		{"wrong version", `{"version":99}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(bytes.NewBufferString(tt.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestWriteRejectsBadPath(t *testing.T) {
	if err := Write("", Document{}); err == nil {
		t.Error("expected an error for an empty path")
	}
	if err := Write("bad\x00name.json", Document{}); err == nil {
		t.Error("expected an error for a null byte")
	}
}
