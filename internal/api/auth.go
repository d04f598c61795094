package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
)

type contextKey string

const userIDKey contextKey = "user_id"

// withUserID attaches an authenticated user to ctx.
func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate verifies the request's bearer token and returns its user.
func (s *Server) authenticate(r *http.Request, token string) (string, error) {
	if token == "" {
		return "", errors.NewAuth("missing token", nil)
	}
	userID, err := s.tokens.Verify(token)
	if err != nil {
		var authErr *errors.AuthError
		reason := "invalid token"
		if errors.As(err, &authErr) {
			reason = authErr.Reason
		}
		logging.SecurityEvent("unauthorized_request", "auth",
			"path", r.URL.Path,
			"reason", reason)
		return "", err
	}
	return userID, nil
}

// requireAuth rejects requests without a valid bearer token with 401 and
// passes the authenticated user to next.
func (s *Server) requireAuth(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authenticate(r, bearerToken(r))
		if err != nil {
			respondErr(w, r, err)
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), userID)), userID)
	}
}

// optionalAuth attaches the user when a valid bearer token is present. A
// missing or invalid token is ignored.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if userID, err := s.authenticate(r, token); err == nil {
				r = r.WithContext(withUserID(r.Context(), userID))
			}
		}
		next(w, r)
	}
}
