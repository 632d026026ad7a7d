package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// limitTier separates the two request budgets.
type limitTier string

const (
	tierAuth       limitTier = "auth"
	tierGeneration limitTier = "generation"
)

type bucketKey struct {
	addr string
	tier limitTier
}

// hitBucket serializes access to one (address, tier) sliding window.
// deleted marks a bucket the collector has removed from the map; a caller
// holding a stale pointer must re-fetch instead of recording hits into it.
type hitBucket struct {
	mu      sync.Mutex
	hits    []time.Time
	deleted bool
}

// rateLimiter enforces independent sliding-window limits per client
// address and tier. The bucket map is read-mostly: lookups take the read
// lock, bucket creation and garbage collection take the write lock, and
// all timestamp work happens under the per-bucket mutex.
type rateLimiter struct {
	window time.Duration
	limits map[limitTier]int

	mu      sync.RWMutex
	buckets map[bucketKey]*hitBucket
	lastGC  atomic.Int64
}

func newRateLimiter(window time.Duration, authLimit, generationLimit int) *rateLimiter {
	return &rateLimiter{
		window: window,
		limits: map[limitTier]int{
			tierAuth:       authLimit,
			tierGeneration: generationLimit,
		},
		buckets: make(map[bucketKey]*hitBucket),
	}
}

// allow records a hit and reports whether the request may proceed. When
// the budget is exhausted it returns the wait until the oldest remaining
// hit leaves the window.
func (rl *rateLimiter) allow(addr string, tier limitTier) (ok bool, retryAfter time.Duration) {
	key := bucketKey{addr: addr, tier: tier}
	limit := rl.limits[tier]

	for {
		rl.mu.RLock()
		b := rl.buckets[key]
		rl.mu.RUnlock()

		if b == nil {
			rl.mu.Lock()
			b = rl.buckets[key]
			if b == nil {
				b = &hitBucket{}
				rl.buckets[key] = b
			}
			rl.mu.Unlock()
		}

		b.mu.Lock()
		if b.deleted {
			// The collector removed this bucket between the lookup and
			// the lock; a hit appended here would be lost.
			b.mu.Unlock()
			continue
		}

		now := time.Now()
		cutoff := now.Add(-rl.window)
		start := 0
		for start < len(b.hits) && !b.hits[start].After(cutoff) {
			start++
		}
		b.hits = b.hits[start:]

		if len(b.hits) >= limit {
			wait := rl.window - now.Sub(b.hits[0])
			b.mu.Unlock()
			return false, wait
		}
		b.hits = append(b.hits, now)
		b.mu.Unlock()
		return true, 0
	}
}

// maybeGC drops empty buckets, at most once per window.
func (rl *rateLimiter) maybeGC() {
	now := time.Now()
	last := rl.lastGC.Load()
	if now.UnixNano()-last < rl.window.Nanoseconds() {
		return
	}
	if !rl.lastGC.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	cutoff := now.Add(-rl.window)
	rl.mu.Lock()
	for key, b := range rl.buckets {
		b.mu.Lock()
		live := false
		for _, h := range b.hits {
			if h.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			b.deleted = true
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
	rl.mu.Unlock()
}

// tierForPath maps a request path onto its limit tier. Paths outside both
// budgets are not rate limited.
func tierForPath(path string) (limitTier, bool) {
	switch {
	case strings.HasPrefix(path, "/api/v1/generate"):
		return tierGeneration, true
	case strings.HasPrefix(path, "/api/v1/providers"):
		return tierAuth, true
	}
	return "", false
}

// RateLimitMiddleware rejects requests that exceed their tier's budget
// with a 429 and a Retry-After header. It must run before the session
// middleware.
func (a *API) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier, limited := tierForPath(r.URL.Path)
		if !limited {
			next.ServeHTTP(w, r)
			return
		}

		a.limiter.maybeGC()

		ok, retryAfter := a.limiter.allow(extractClientIP(r), tier)
		if !ok {
			a.writeAPIError(w, r, rateLimited(retryAfter))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientIP returns the client address for rate limiting. Proxy
// headers are deliberately not consulted: trusting them without a
// configured proxy allowlist would let clients reset their own buckets.
func extractClientIP(r *http.Request) string {
	s := r.RemoteAddr
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String()
	}
	return s
}
