package api

import (
	"net/http"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/internal/sqlite"
	"github.com/FocuswithJustin/GitaCompanion/internal/upstream"
)

// DatabaseHealth describes the SQLite backend.
type DatabaseHealth struct {
	sqlite.Info
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status           string         `json:"status"`
	Version          string         `json:"version"`
	Uptime           string         `json:"uptime"`
	Database         DatabaseHealth `json:"database"`
	Upstream         upstream.Stats `json:"upstream"`
	Progress         RecorderStats  `json:"progress"`
	WebSocketClients int            `json:"websocket_clients"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Gita Companion API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"POST /api/auth/signup",
			"POST /api/auth/login",
			"GET /api/auth/me",
			"GET /api/gita/chapters",
			"GET /api/gita/chapter/:n",
			"GET /api/gita/slok/:chapter/:verse",
			"GET /api/gita/:chapter/:verse",
			"GET /api/gita/next/:chapter/:verse",
			"GET /api/gita/previous/:chapter/:verse",
			"GET /api/gita/random",
			"GET /api/gita/ref?q=",
			"GET /api/gita/verse-of-day",
			"GET /api/user/progress",
			"POST /api/user/progress",
			"POST /api/user/bookmark/:chapter/:verse",
			"DELETE /api/user/bookmark/:chapter/:verse",
			"GET /api/user/bookmarks",
			"DELETE /api/user/bookmarks",
			"GET /api/user/verse-of-day",
			"GET /api/user/verse-of-day/global",
			"POST /api/feedback",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := DatabaseHealth{Info: sqlite.GetInfo(), OK: true}
	status := "healthy"
	if err := s.store.Ping(r.Context()); err != nil {
		db.OK = false
		db.Error = "database unreachable"
		status = "degraded"
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:           status,
		Version:          Version,
		Uptime:           time.Since(s.startTime).Round(time.Second).String(),
		Database:         db,
		Upstream:         s.upstream.Stats(),
		Progress:         s.recorder.Stats(),
		WebSocketClients: s.hub.TotalClients(),
	})
}
