package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
	IdleTTL           time.Duration // How long an idle client's limiter is kept
	TrustProxyHeaders bool          // Key clients by X-Forwarded-For / X-Real-IP
}

// RateLimiter manages per-IP rate limiting with one token bucket per
// client address.
type RateLimiter struct {
	config   RateLimiterConfig
	limiters *gocache.Cache
	mu       sync.Mutex
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// Idle limiters expire after IdleTTL; Sweep releases their memory.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: gocache.New(config.IdleTTL, 0),
		now:      time.Now,
	}
}

// limiter returns the bucket for ip, creating it if necessary. Every access
// pushes the idle expiry forward.
func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(ip); ok {
		lim := v.(*rate.Limiter)
		rl.limiters.SetDefault(ip, lim)
		return lim
	}
	perSecond := rate.Limit(float64(rl.config.RequestsPerMinute) / 60.0)
	lim := rate.NewLimiter(perSecond, rl.config.BurstSize)
	rl.limiters.SetDefault(ip, lim)
	return lim
}

// Allow checks if a request from the given IP should be allowed. When it
// is not, the returned duration is how long the client should wait.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	now := rl.now()
	res := rl.limiter(ip).ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Remaining returns the number of requests the given IP may still make
// without waiting.
func (rl *RateLimiter) Remaining(ip string) int {
	tokens := rl.limiter(ip).TokensAt(rl.now())
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// Clients returns the number of tracked client addresses.
func (rl *RateLimiter) Clients() int {
	return rl.limiters.ItemCount()
}

// Sweep drops limiters that have been idle for longer than IdleTTL.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters.DeleteExpired()
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, rl.config.TrustProxyHeaders)
		allowed, wait := rl.Allow(ip)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", rl.Remaining(ip)))

		if !allowed {
			retryAfter := int(math.Ceil(wait.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request. With
// trustProxy set it checks X-Forwarded-For and X-Real-IP before falling
// back to RemoteAddr; header values are only used when they parse as an IP
// address. Without it the headers are ignored.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}

	// RemoteAddr is "IP:port"; some test harnesses set a bare IP.
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if isValidIP(ip) {
		return ip
	}
	return "unknown"
}

// forwardedIP returns the client address reported by a reverse proxy, or
// "" when neither header holds a valid IP.
func forwardedIP(r *http.Request) string {
	// Format: X-Forwarded-For: client, proxy1, proxy2
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP, _, _ := strings.Cut(forwarded, ",")
		clientIP = strings.TrimSpace(clientIP)
		if isValidIP(clientIP) {
			return clientIP
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" && isValidIP(realIP) {
		return realIP
	}
	return ""
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address.
func isValidIP(ipStr string) bool {
	return net.ParseIP(ipStr) != nil
}
