package api

import (
	"net/http"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/internal/auth"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
	"github.com/FocuswithJustin/GitaCompanion/internal/validation"
)

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries a fresh token and the account it belongs to.
type AuthResponse struct {
	Token    string          `json:"token"`
	User     store.User      `json:"user"`
	Progress *store.Progress `json:"progress,omitempty"`
}

// AccountResponse describes the authenticated reader.
type AccountResponse struct {
	User     store.User     `json:"user"`
	Progress store.Progress `json:"progress"`
}

// errInvalidCredentials is returned for an unknown email or a wrong
// password alike.
var errInvalidCredentials = errors.NewValidation("credentials", "Invalid email or password")

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := validation.Signup(req.Name, req.Email, req.Password); err != nil {
		respondErr(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondErr(w, r, errors.Wrap(err, "hash password"))
		return
	}
	user, err := s.store.CreateUser(r.Context(), req.Name, req.Email, hash)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	logging.InfoContext(r.Context(), "user signed up", "user_id", user.ID)
	respond(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := validation.Credentials(req.Email, req.Password); err != nil {
		respondErr(w, r, err)
		return
	}

	user, err := s.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, errors.ErrNotFound) {
		logging.SecurityEvent("login_failed", "auth", "reason", "unknown email")
		respondErr(w, r, errInvalidCredentials)
		return
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !ok {
		logging.SecurityEvent("login_failed", "auth", "reason", "wrong password", "user_id", user.ID)
		respondErr(w, r, errInvalidCredentials)
		return
	}

	progress, err := s.store.GetProgress(r.Context(), user.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, AuthResponse{Token: token, User: user, Progress: &progress})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := s.store.UserByID(r.Context(), userID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	progress, err := s.store.GetProgress(r.Context(), userID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, AccountResponse{User: user, Progress: progress})
}
