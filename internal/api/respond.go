package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/server"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

func respond(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, APIResponse{Success: true, Data: data})
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	writeEnvelope(w, http.StatusOK, APIResponse{Success: true, Data: data, Meta: &APIMeta{Total: total}})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{Error: &APIError{Code: code, Message: message}})
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	if resp.Meta == nil {
		resp.Meta = &APIMeta{}
	}
	resp.Meta.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// statusFor maps an error to its HTTP status, error code and client-safe
// message.
func statusFor(err error) (int, string, string) {
	var (
		validationErr *errors.ValidationError
		rangeErr      *errors.OutOfRangeError
		conflictErr   *errors.ConflictError
		authErr       *errors.AuthError
		notFoundErr   *errors.NotFoundError
		upstreamErr   *errors.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message
	case errors.As(err, &rangeErr):
		return http.StatusBadRequest, "OUT_OF_RANGE", rangeErr.Error()
	case errors.As(err, &conflictErr):
		return http.StatusBadRequest, "ALREADY_EXISTS", conflictErr.Error()
	case errors.As(err, &authErr):
		msg := "Unauthorized"
		if authErr.Reason != "" {
			msg = authErr.Reason
		}
		return http.StatusUnauthorized, "UNAUTHORIZED", msg
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "NOT_FOUND", notFoundErr.Error()
	case errors.As(err, &upstreamErr):
		return http.StatusInternalServerError, "UPSTREAM_ERROR", "Failed to fetch verse content"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}

// respondErr writes err as an error envelope. Server-side failures are
// logged with their cause; the client only sees the mapped message.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	var notFound *errors.NotFoundError
	switch {
	case status >= http.StatusInternalServerError:
		logging.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"code", code,
			"error", err)
	case errors.As(err, &notFound) && notFound.Resource == "user":
		if userID, ok := UserIDFromContext(r.Context()); ok && userID == notFound.ID {
			logging.WarnContext(r.Context(), "token refers to a missing user",
				"path", r.URL.Path,
				"user_id", userID)
		}
	}
	respondError(w, status, code, msg)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !server.ValidateContentType(ct, server.AllowedJSONContentTypes) {
		return errors.NewValidation("body", "Content-Type must be application/json")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &errors.ValidationError{Field: "body", Message: "invalid JSON body", Err: err}
	}
	return nil
}

// notModified reports whether the request's If-None-Match matches etag.
func notModified(r *http.Request, etag string) bool {
	header := r.Header.Get("If-None-Match")
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// fallbackCapture records what the mux's built-in 404/405 handler would
// write so the reply can be re-sent inside the JSON envelope.
type fallbackCapture struct {
	header http.Header
	status int
}

func (c *fallbackCapture) Header() http.Header { return c.header }

func (c *fallbackCapture) Write(b []byte) (int, error) { return len(b), nil }

func (c *fallbackCapture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

// withEnvelopeFallback answers unmatched routes and wrong methods with
// error envelopes instead of the mux's plain-text replies.
func withEnvelopeFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}
		capture := &fallbackCapture{header: make(http.Header)}
		h.ServeHTTP(capture, r)
		if capture.status == http.StatusMethodNotAllowed {
			if allow := capture.header.Get("Allow"); allow != "" {
				w.Header().Set("Allow", allow)
			}
			respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
			return
		}
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	})
}
