package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/upstream"
)

// pathInt parses a numeric path segment.
func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, &errors.ValidationError{
			Field:   name,
			Value:   r.PathValue(name),
			Message: name + " must be an integer",
			Err:     err,
		}
	}
	return n, nil
}

// pathCoordinate reads {c} and {v} without range checks.
func pathCoordinate(r *http.Request) (verse.Coordinate, error) {
	chapter, err := pathInt(r, "c")
	if err != nil {
		return verse.Coordinate{}, err
	}
	v, err := pathInt(r, "v")
	if err != nil {
		return verse.Coordinate{}, err
	}
	return verse.Coordinate{Chapter: chapter, Verse: v}, nil
}

// checkCoordinate returns an *errors.OutOfRangeError for coordinates
// outside the corpus.
func checkCoordinate(c verse.Coordinate) error {
	n, err := verse.VerseCount(c.Chapter)
	if err != nil {
		return err
	}
	if c.Verse < 1 || c.Verse > n {
		return errors.NewOutOfRange("verse", c.Verse, 1, n)
	}
	return nil
}

// validPathCoordinate reads {c} and {v} and rejects out-of-range values.
func validPathCoordinate(r *http.Request) (verse.Coordinate, error) {
	c, err := pathCoordinate(r)
	if err != nil {
		return verse.Coordinate{}, err
	}
	return c, checkCoordinate(c)
}

// writeEntry sends an upstream payload as-is with its entity tag.
func writeEntry(w http.ResponseWriter, r *http.Request, e *upstream.Entry) {
	w.Header().Set("ETag", e.ETag())
	if notModified(r, e.ETag()) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	respond(w, http.StatusOK, json.RawMessage(e.Body))
}

// recordRead queues a progress update when a user is attached.
func (s *Server) recordRead(r *http.Request, c verse.Coordinate) {
	if userID, ok := UserIDFromContext(r.Context()); ok {
		s.recorder.Enqueue(ProgressUpdate{UserID: userID, Verse: c, At: s.now()})
	}
}

// serveVerse writes c and records the read for an attached user.
func (s *Server) serveVerse(w http.ResponseWriter, r *http.Request, c verse.Coordinate) {
	if s.writeVerse(w, r, c, nil) {
		s.recordRead(r, c)
	}
}

// writeVerse fetches c and writes it with its coordinate and extra fields
// merged in. It reports whether the fetch succeeded and never touches
// reading progress.
func (s *Server) writeVerse(w http.ResponseWriter, r *http.Request, c verse.Coordinate, extra map[string]interface{}) bool {
	data, entry, err := s.upstream.Verse(r.Context(), c)
	if err != nil {
		respondErr(w, r, err)
		return false
	}

	if len(extra) == 0 {
		w.Header().Set("ETag", entry.ETag())
		if notModified(r, entry.ETag()) {
			w.WriteHeader(http.StatusNotModified)
			return true
		}
	}
	for k, v := range extra {
		data[k] = v
	}
	respond(w, http.StatusOK, data)
	return true
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	e, err := s.upstream.Fetch(r.Context(), upstream.ChaptersPath)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeEntry(w, r, e)
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	n, err := pathInt(r, "n")
	if err == nil {
		_, err = verse.VerseCount(n)
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	e, err := s.upstream.Fetch(r.Context(), upstream.ChapterPath(n))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeEntry(w, r, e)
}

func (s *Server) handleSlok(w http.ResponseWriter, r *http.Request) {
	c, err := validPathCoordinate(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	e, err := s.upstream.Fetch(r.Context(), c.SlokPath())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeEntry(w, r, e)
}

func (s *Server) handleVerse(w http.ResponseWriter, r *http.Request) {
	c, err := validPathCoordinate(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.serveVerse(w, r, c)
}

// handleNext and handlePrevious clamp out-of-range input before stepping.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	c, err := pathCoordinate(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.serveVerse(w, r, verse.Next(c))
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	c, err := pathCoordinate(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.serveVerse(w, r, verse.Previous(c))
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	s.serveVerse(w, r, verse.Random(nil))
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	c, err := verse.ParseReference(r.URL.Query().Get("q"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	s.serveVerse(w, r, c)
}

// handleVerseOfDay serves the stored assignment for an attached user and
// the global verse of the day otherwise. Neither counts as a read.
func (s *Server) handleVerseOfDay(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	if userID, ok := UserIDFromContext(r.Context()); ok {
		if _, err := s.store.UserByID(r.Context(), userID); err == nil {
			dv, err := s.store.AssignDailyVerse(r.Context(), userID, now)
			if err != nil {
				respondErr(w, r, err)
				return
			}
			s.writeVerse(w, r, dv.Verse, map[string]interface{}{"date": dv.Date, "personalized": true})
			return
		}
	}
	s.writeVerse(w, r, verse.Daily("", now), map[string]interface{}{
		"date":         verse.DateString(now),
		"personalized": false,
	})
}
