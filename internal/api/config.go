package api

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/FocuswithJustin/GitaCompanion/internal/auth"
	"github.com/FocuswithJustin/GitaCompanion/internal/upstream"
)

// Config holds server configuration. Every field can be set from a
// GITA_* environment variable; command-line flags override them.
type Config struct {
	Port              int           `env:"GITA_PORT" envDefault:"4000"`
	DBPath            string        `env:"GITA_DB_PATH" envDefault:"./data/gita.db"`
	JWTSecret         string        `env:"GITA_JWT_SECRET"`
	UpstreamURL       string        `env:"GITA_UPSTREAM_URL" envDefault:"https://vedicscriptures.github.io"`
	UpstreamTimeout   time.Duration `env:"GITA_UPSTREAM_TIMEOUT" envDefault:"5s"`
	CacheTTL          time.Duration `env:"GITA_CACHE_TTL" envDefault:"1h"`
	RateLimitRequests int           `env:"GITA_RATE_LIMIT" envDefault:"120"` // Requests per minute (0 = disabled)
	RateLimitBurst    int           `env:"GITA_RATE_BURST" envDefault:"20"`
	TrustProxyHeaders bool          `env:"GITA_TRUST_PROXY"` // Rate-limit by X-Forwarded-For (only behind a proxy)
	AllowedOrigins    []string      `env:"GITA_ALLOWED_ORIGINS" envSeparator:","` // CORS allowed origins (empty = allow all)
	LogLevel          string        `env:"GITA_LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"GITA_LOG_FORMAT" envDefault:"json"`
	ProgressWorkers   int           `env:"GITA_PROGRESS_WORKERS" envDefault:"2"`
	ProgressQueue     int           `env:"GITA_PROGRESS_QUEUE" envDefault:"256"`
	TLS               TLSConfig
}

// TLSConfig holds TLS/HTTPS configuration. TLS is on when both files are set.
type TLSConfig struct {
	CertFile string `env:"GITA_TLS_CERT"`
	KeyFile  string `env:"GITA_TLS_KEY"`
}

// Enabled reports whether a certificate and key were configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration before the server starts.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if len(c.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters (got %d)", auth.MinSecretLength, len(c.JWTSecret))
	}
	if c.RateLimitRequests < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if c.ProgressWorkers < 1 {
		return fmt.Errorf("at least one progress worker is required")
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS needs both a cert and a key file")
	}
	if c.TLS.Enabled() {
		if _, err := os.Stat(c.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(c.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}
	return nil
}

// upstreamConfig derives the verse-service client settings.
func (c Config) upstreamConfig() upstream.Config {
	return upstream.Config{
		BaseURL: c.UpstreamURL,
		Timeout: c.UpstreamTimeout,
		TTL:     c.CacheTTL,
	}
}
