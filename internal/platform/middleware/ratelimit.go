package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"newsletter/internal/platform/metrics"
	dErrors "newsletter/pkg/domain-errors"
	"newsletter/pkg/platform/httputil"
	"newsletter/pkg/requestcontext"
)

// DefaultMaxClients bounds the number of tracked client keys.
const DefaultMaxClients = 10000

// ClientLimiter keeps one token bucket per client key and forgets keys that
// stay idle longer than idleTTL. At most maxClients keys are tracked; a new
// key arriving at the cap evicts the least recently seen one.
type ClientLimiter struct {
	mu         sync.Mutex
	entries    map[string]*limiterEntry
	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	maxClients int
	now        func() time.Time
}

// LimiterOption configures a ClientLimiter.
type LimiterOption func(*ClientLimiter)

// WithMaxClients caps the number of tracked keys. Non-positive values are ignored.
func WithMaxClients(n int) LimiterOption {
	return func(l *ClientLimiter) {
		if n > 0 {
			l.maxClients = n
		}
	}
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter allows rps requests per second per key with the given burst.
func NewClientLimiter(rps float64, burst int, opts ...LimiterOption) *ClientLimiter {
	l := &ClientLimiter{
		entries:    make(map[string]*limiterEntry),
		limit:      rate.Limit(rps),
		burst:      burst,
		idleTTL:    15 * time.Minute,
		maxClients: DefaultMaxClients,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow consumes one token for key. When denied it also returns how long
// until a token is available.
func (l *ClientLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	ent, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxClients {
			l.evictLocked(now)
		}
		ent = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = ent
	}
	ent.lastSeen = now
	l.mu.Unlock()

	res := ent.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, 0
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// Cleanup drops keys idle for longer than the idle TTL.
func (l *ClientLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// evictLocked drops idle keys, or the least recently seen key when none are
// idle. Caller holds l.mu.
func (l *ClientLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	var oldestKey string
	var oldest time.Time
	for key, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			continue
		}
		if oldestKey == "" || ent.lastSeen.Before(oldest) {
			oldestKey, oldest = key, ent.lastSeen
		}
	}
	if len(l.entries) >= l.maxClients && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// Len returns the number of tracked keys.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartCleanup runs Cleanup every interval until ctx is cancelled.
func (l *ClientLimiter) StartCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RateLimit rejects requests with 429 once the client's bucket is empty.
// The key is the client IP stored by ClientMetadata.
func RateLimit(limiter *ClientLimiter, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := requestcontext.ClientIP(ctx)
			if key == "" {
				key = "unknown"
			}

			allowed, retryAfter := limiter.Allow(key)
			if !allowed {
				if m != nil {
					m.IncrementRateLimited()
				}
				logger.WarnContext(ctx, "rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
