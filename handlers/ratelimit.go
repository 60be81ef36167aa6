package handlers

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     float64 // current number of tokens
	capacity   float64 // maximum tokens
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastSeen   time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket, initially full
func NewTokenBucket(capacity float64, refillRate float64) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: now,
		lastSeen:   now,
	}
}

// Allow consumes a token if one is available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.lastSeen = tb.lastRefill

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}

	return false
}

// refill adds tokens based on elapsed time. Callers hold tb.mu.
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now
}

// Tokens returns the current number of tokens
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// untilFull returns how long the bucket needs to refill completely
func (tb *TokenBucket) untilFull() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	missing := tb.capacity - tb.tokens
	if missing <= 0 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration(missing / tb.refillRate * float64(time.Second))
}

// idleSince reports whether the bucket is full and unused since cutoff
func (tb *TokenBucket) idleSince(cutoff time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.lastSeen.Before(cutoff) && tb.tokens >= tb.capacity
}

// RateLimiter manages one token bucket per client
type RateLimiter struct {
	buckets   map[string]*TokenBucket
	mu        sync.Mutex
	rpm       int // requests per minute
	burstSize int

	// X-Forwarded-For is client controlled, so it is only read behind a proxy
	trustForwardedFor bool
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rpm, burstSize int) *RateLimiter {
	return &RateLimiter{
		buckets:   make(map[string]*TokenBucket),
		rpm:       rpm,
		burstSize: burstSize,
	}
}

// TrustForwardedFor keys clients by the first X-Forwarded-For entry instead of
// the connection address. Enable it only when a trusted proxy sets the header.
// Call it before the limiter serves requests.
func (rl *RateLimiter) TrustForwardedFor(trust bool) *RateLimiter {
	rl.trustForwardedFor = trust
	return rl
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, exists := rl.buckets[key]
	if !exists {
		b = NewTokenBucket(float64(rl.burstSize), float64(rl.rpm)/60.0)
		rl.buckets[key] = b
	}
	return b
}

// Allow checks if a request from the given key is allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// RemainingTokens returns the whole tokens left for key
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	rl.mu.Unlock()

	if !exists {
		return rl.burstSize
	}
	return int(b.Tokens())
}

// ResetTime returns when the bucket for key will be full again
func (rl *RateLimiter) ResetTime(key string) time.Time {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	rl.mu.Unlock()

	if !exists {
		return time.Now()
	}
	return time.Now().Add(b.untilFull())
}

// Cleanup removes full buckets that have not been used for maxAge
func (rl *RateLimiter) Cleanup(maxAge time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, b := range rl.buckets {
		if b.idleSince(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// RunCleanup sweeps idle buckets every interval until ctx is done
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval, maxAge time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Cleanup(maxAge); n > 0 {
				logger.Debug("rate limiter buckets removed", zap.Int("count", n), zap.Int("tracked", rl.Size()))
			}
		}
	}
}

// Size returns the number of tracked clients
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// clientKey extracts a client identifier from the request
func clientKey(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}

// RateLimitMiddleware rejects clients that exhausted their bucket with 429.
// A nil limiter disables limiting. logger is used when the request context
// carries none.
func RateLimitMiddleware(limiter *RateLimiter, logger *zap.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r, limiter.trustForwardedFor)

		if !limiter.Allow(key) {
			reset := limiter.ResetTime(key)
			retryAfter := int(time.Until(reset).Seconds()) + 1

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rpm))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", reset.Format(time.RFC3339))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "429 TOO MANY REQUESTS", http.StatusTooManyRequests)

			LoggerFromContext(r.Context(), logger).Warn("rate limit exceeded",
				zap.String("client", key),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			return
		}

		next.ServeHTTP(w, r)
	})
}
