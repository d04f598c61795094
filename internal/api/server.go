// Package api provides the Gita Companion REST API server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/internal/auth"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/server"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
	"github.com/FocuswithJustin/GitaCompanion/internal/upstream"
)

// Version is the API version reported by / and /health.
const Version = "1.0.0"

// maintenanceInterval is how often expired cache entries and idle rate
// limiters are swept.
const maintenanceInterval = time.Minute

// Store is the persistence the API needs.
type Store interface {
	store.UserStore
	store.ProgressStore
	store.BookmarkStore
	store.FeedbackStore
	store.DailyVerseStore
	Ping(ctx context.Context) error
}

// Server wires the stores, the verse cache and the token issuer behind the
// HTTP routes.
type Server struct {
	cfg      Config
	store    Store
	upstream *upstream.Client
	tokens   *auth.TokenIssuer
	hub      *Hub
	recorder *ProgressRecorder
	limiter  *RateLimiter

	now       func() time.Time
	startTime time.Time

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a server and starts its background workers. Close releases
// them.
func New(cfg Config, st Store, up *upstream.Client, tokens *auth.TokenIssuer) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		upstream:  up,
		tokens:    tokens,
		hub:       NewHub(),
		now:       time.Now,
		startTime: time.Now(),
		stop:      make(chan struct{}),
	}
	s.recorder = NewProgressRecorder(st, s.hub, cfg.ProgressWorkers, cfg.ProgressQueue)
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		})
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run()
	}()
	go s.maintain()
	return s
}

// maintain periodically sweeps expired cache entries and idle limiters.
func (s *Server) maintain() {
	defer s.wg.Done()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.upstream.Purge(); n > 0 {
				logging.CacheEvent("purge", "upstream", "removed", n)
			}
			if s.limiter != nil {
				s.limiter.Sweep()
				logging.Debug("rate limiter swept", "clients", s.limiter.Clients())
			}
		}
	}
}

// Close drains the progress queue, disconnects WebSocket clients and stops
// background goroutines.
func (s *Server) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.recorder.Shutdown(ctx)
		s.hub.Stop()
		close(s.stop)
		s.wg.Wait()
	})
	return err
}

// Handler builds the route table wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = withEnvelopeFallback(s.routes())

	// Build middleware chain with security headers
	handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), handler)

	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}

	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)

	// Apply logging middleware (outermost)
	return logging.CombinedMiddleware(handler)
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("GET /api/gita/chapters", s.handleChapters)
	mux.HandleFunc("GET /api/gita/chapter/{n}", s.handleChapter)
	mux.HandleFunc("GET /api/gita/slok/{c}/{v}", s.handleSlok)
	mux.HandleFunc("GET /api/gita/{c}/{v}", s.optionalAuth(s.handleVerse))
	mux.HandleFunc("GET /api/gita/next/{c}/{v}", s.optionalAuth(s.handleNext))
	mux.HandleFunc("GET /api/gita/previous/{c}/{v}", s.optionalAuth(s.handlePrevious))
	mux.HandleFunc("GET /api/gita/random", s.optionalAuth(s.handleRandom))
	mux.HandleFunc("GET /api/gita/ref", s.optionalAuth(s.handleReference))
	mux.HandleFunc("GET /api/gita/verse-of-day", s.optionalAuth(s.handleVerseOfDay))

	mux.HandleFunc("GET /api/user/progress", s.requireAuth(s.handleGetProgress))
	mux.HandleFunc("POST /api/user/progress", s.requireAuth(s.handleRecordProgress))
	mux.HandleFunc("POST /api/user/bookmark/{c}/{v}", s.requireAuth(s.handleAddBookmark))
	mux.HandleFunc("DELETE /api/user/bookmark/{c}/{v}", s.requireAuth(s.handleRemoveBookmark))
	mux.HandleFunc("GET /api/user/bookmarks", s.requireAuth(s.handleListBookmarks))
	mux.HandleFunc("DELETE /api/user/bookmarks", s.requireAuth(s.handleClearBookmarks))
	mux.HandleFunc("GET /api/user/verse-of-day", s.requireAuth(s.handleUserVerseOfDay))
	mux.HandleFunc("GET /api/user/verse-of-day/global", s.handleGlobalVerseOfDay)

	mux.HandleFunc("POST /api/feedback", s.optionalAuth(s.handleFeedback))

	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Log server startup with appropriate protocol
	protocol, wsProtocol := "http", "ws"
	if s.cfg.TLS.Enabled() {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"websocket_protocol", wsProtocol,
		"upstream", s.cfg.UpstreamURL,
		"progress_workers", s.cfg.ProgressWorkers)
	if s.limiter != nil {
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.limiter.config.BurstSize)
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(s.cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled() {
			errCh <- httpServer.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Close(closeCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("http shutdown", "error", err)
	}
	return s.Close(shutdownCtx)
}

// Start opens the database, builds the server from cfg and serves until
// ctx is cancelled.
func Start(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	srv := New(cfg, st, upstream.New(cfg.upstreamConfig()), tokens)
	return srv.ListenAndServe(ctx)
}
