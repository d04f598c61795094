// Package export writes and reads a reader's account data: profile,
// reading progress and bookmarks. Files ending in ".xz" are compressed.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/GitaCompanion/internal/store"
	"github.com/FocuswithJustin/GitaCompanion/internal/validation"
)

// FormatVersion is written into every export.
const FormatVersion = 1

// Document is the exported account.
type Document struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	User       store.User       `json:"user"`
	Progress   store.Progress   `json:"progress"`
	Bookmarks  []store.Bookmark `json:"bookmarks"`
}

// Source is the subset of the store an export reads from.
type Source interface {
	UserByEmail(ctx context.Context, email string) (store.User, error)
	GetProgress(ctx context.Context, userID string) (store.Progress, error)
	ListBookmarks(ctx context.Context, userID string) ([]store.Bookmark, error)
}

// Build collects the account registered under email.
func Build(ctx context.Context, src Source, email string, now time.Time) (Document, error) {
	u, err := src.UserByEmail(ctx, email)
	if err != nil {
		return Document{}, err
	}
	p, err := src.GetProgress(ctx, u.ID)
	if err != nil {
		return Document{}, fmt.Errorf("load progress: %w", err)
	}
	bookmarks, err := src.ListBookmarks(ctx, u.ID)
	if err != nil {
		return Document{}, fmt.Errorf("load bookmarks: %w", err)
	}
	if bookmarks == nil {
		bookmarks = []store.Bookmark{}
	}
	return Document{
		Version:    FormatVersion,
		ExportedAt: now.UTC(),
		User:       u,
		Progress:   p,
		Bookmarks:  bookmarks,
	}, nil
}

// Encode writes doc as indented JSON, xz-compressed when compress is set.
func Encode(w io.Writer, doc Document, compress bool) error {
	if !compress {
		return encodeJSON(w, doc)
	}
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("xz writer: %w", err)
	}
	if err := encodeJSON(xw, doc); err != nil {
		xw.Close()
		return err
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("close xz stream: %w", err)
	}
	return nil
}

func encodeJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Decode reads a document written by Encode, compressed or not.
func Decode(r io.Reader) (Document, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return Document{}, fmt.Errorf("read export header: %w", err)
	}

	var src io.Reader = br
	switch validation.SniffFileType(header) {
	case validation.FileTypeXZ:
		xr, err := xz.NewReader(br)
		if err != nil {
			return Document{}, fmt.Errorf("xz reader: %w", err)
		}
		src = xr
	case validation.FileTypeJSON:
	default:
		return Document{}, fmt.Errorf("unrecognized export format")
	}

	var doc Document
	if err := json.NewDecoder(src).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode export: %w", err)
	}
	if doc.Version != FormatVersion {
		return Document{}, fmt.Errorf("unsupported export version %d", doc.Version)
	}
	return doc, nil
}

// Write saves doc to path, creating parent directories. A ".xz" suffix
// selects compression.
func Write(path string, doc Document) (err error) {
	if err := validation.ValidatePath(path); err != nil {
		return fmt.Errorf("invalid export path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()
	return Encode(f, doc, strings.HasSuffix(path, ".xz"))
}

// Read loads an export from path. The format is detected from content.
func Read(path string) (Document, error) {
	if err := validation.ValidatePath(path); err != nil {
		return Document{}, fmt.Errorf("invalid export path: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
