package api

import (
	"net/http"

	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/server"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
	"github.com/FocuswithJustin/GitaCompanion/internal/validation"
)

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Feedback string `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	name := server.SanitizeUserInput(server.StripHTMLTags(req.Name))
	body := server.SanitizeUserInput(server.StripHTMLTags(req.Feedback))
	if err := validation.Feedback(name, req.Email, body); err != nil {
		respondErr(w, r, err)
		return
	}

	userID, _ := UserIDFromContext(r.Context())
	f, err := s.store.AddFeedback(r.Context(), store.Feedback{
		Name:   name,
		Email:  req.Email,
		UserID: userID,
		Body:   body,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}

	logging.InfoContext(r.Context(), "feedback received", "feedback_id", f.ID, "user_id", userID)
	respond(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": f.ID})
}
