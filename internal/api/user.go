package api

import (
	"io"
	"net/http"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
)

// ProgressRequest is the body of POST /api/user/progress.
type ProgressRequest struct {
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// ProgressResponse acknowledges a recorded read.
type ProgressResponse struct {
	OK       bool           `json:"ok"`
	Streak   int            `json:"streak"`
	Progress store.Progress `json:"progress"`
}

// BookmarkRequest is the optional body of POST /api/user/bookmark/{c}/{v}.
type BookmarkRequest struct {
	Slok        string `json:"slok"`
	Translation string `json:"translation"`
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := s.store.GetProgress(r.Context(), userID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, p)
}

func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request, userID string) {
	var req ProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	c := verse.Coordinate{Chapter: req.Chapter, Verse: req.Verse}
	if err := checkCoordinate(c); err != nil {
		respondErr(w, r, err)
		return
	}

	p, err := s.store.RecordProgress(r.Context(), userID, c, s.now())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.hub.Publish(userID, Event{Type: EventProgress, Progress: &p})
	respond(w, http.StatusOK, ProgressResponse{OK: true, Streak: p.StreakCount, Progress: p})
}

func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := validPathCoordinate(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	var req BookmarkRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			respondErr(w, r, err)
			return
		}
	}

	b, err := s.store.AddBookmark(r.Context(), store.Bookmark{
		UserID:      userID,
		Chapter:     c.Chapter,
		Verse:       c.Verse,
		Slok:        req.Slok,
		Translation: req.Translation,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, b)
}

func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := validPathCoordinate(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := s.store.RemoveBookmark(r.Context(), userID, c); err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request, userID string) {
	bookmarks, err := s.store.ListBookmarks(r.Context(), userID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondList(w, bookmarks, len(bookmarks))
}

func (s *Server) handleClearBookmarks(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := s.store.ClearBookmarks(r.Context(), userID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]interface{}{"ok": true, "removed": n})
}

// handleUserVerseOfDay returns the reader's stored assignment for today,
// creating it on first request.
func (s *Server) handleUserVerseOfDay(w http.ResponseWriter, r *http.Request, userID string) {
	if _, err := s.store.UserByID(r.Context(), userID); err != nil {
		respondErr(w, r, err)
		return
	}
	dv, err := s.store.AssignDailyVerse(r.Context(), userID, s.now())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.writeVerse(w, r, dv.Verse, map[string]interface{}{"date": dv.Date, "personalized": true})
}

func (s *Server) handleGlobalVerseOfDay(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	s.writeVerse(w, r, verse.Daily("", now), map[string]interface{}{
		"date":         verse.DateString(now),
		"personalized": false,
	})
}
