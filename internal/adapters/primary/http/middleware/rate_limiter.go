package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	RequestsPerSecond float64       // Requests allowed per second
	BurstSize         int           // Maximum burst size
	CleanupInterval   time.Duration // How often idle keys are swept
	TTL               time.Duration // How long an idle key is remembered
}

// DefaultRateLimiterConfig returns 10 req/s with bursts of 20 per client.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   time.Minute,
		TTL:               3 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiters holds one token bucket per key and forgets keys idle longer
// than ttl.
type keyedLimiters struct {
	mu         sync.Mutex
	entries    map[string]*visitor
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	retryAfter string
}

func newKeyedLimiters(cfg RateLimiterConfig) *keyedLimiters {
	k := &keyedLimiters{
		entries:    make(map[string]*visitor),
		limit:      rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.BurstSize,
		ttl:        cfg.TTL,
		retryAfter: retryAfterSeconds(cfg.RequestsPerSecond),
	}
	if cfg.CleanupInterval > 0 {
		go k.sweepEvery(cfg.CleanupInterval)
	}
	return k
}

func (k *keyedLimiters) allow(key string) bool {
	now := time.Now()

	k.mu.Lock()
	v, ok := k.entries[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = v
	}
	v.lastSeen = now
	k.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (k *keyedLimiters) sweep(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, v := range k.entries {
		if now.Sub(v.lastSeen) > k.ttl {
			delete(k.entries, key)
		}
	}
}

func (k *keyedLimiters) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		k.sweep(now)
	}
}

// middleware rejects requests whose key has no tokens left.
func (k *keyedLimiters) middleware(keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !k.allow(keyOf(r)) {
				writeRateLimited(w, k.retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter limits each client IP separately.
type RateLimiter struct {
	limiters *keyedLimiters
}

// NewRateLimiter creates a per-IP limiter and starts its idle-key sweeper.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{limiters: newKeyedLimiters(cfg)}
}

// Allow checks if a request from the given IP is allowed
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.limiters.allow(ip)
}

// Middleware rate limits requests by client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return rl.limiters.middleware(getClientIP)(next)
}

// RateLimitByKey limits arbitrary keys, such as user IDs.
type RateLimitByKey struct {
	limiters *keyedLimiters
}

// NewRateLimitByKey creates a key-based rate limiter. Keys idle for five
// minutes are forgotten.
func NewRateLimitByKey(requestsPerSecond float64, burst int) *RateLimitByKey {
	return &RateLimitByKey{limiters: newKeyedLimiters(RateLimiterConfig{
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burst,
		CleanupInterval:   time.Minute,
		TTL:               5 * time.Minute,
	})}
}

// Allow checks if a request with the given key is allowed
func (rl *RateLimitByKey) Allow(key string) bool {
	return rl.limiters.allow(key)
}

// PerUser limits each authenticated user separately, falling back to the
// client IP when no claims are present.
func (rl *RateLimitByKey) PerUser(next http.Handler) http.Handler {
	return rl.limiters.middleware(func(r *http.Request) string {
		if claims, ok := GetClaims(r.Context()); ok {
			return "user:" + claims.UserID
		}
		return "ip:" + getClientIP(r)
	})(next)
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := stripPort(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// retryAfterSeconds is the wait for one token at rps, at least one second.
func retryAfterSeconds(rps float64) string {
	if rps <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Max(1, math.Ceil(1/rps))))
}

func writeRateLimited(w http.ResponseWriter, retryAfter string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", retryAfter)
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Too many requests. Please try again later.","code":"RATE_LIMITED"}`))
}
