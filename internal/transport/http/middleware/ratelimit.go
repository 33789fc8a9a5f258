package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	// idleTTL is how long a client's bucket survives without requests.
	idleTTL       = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// RateLimiter is a per-IP token-bucket rate limiter. Idle buckets expire from
// the cache and a returning client starts with a full burst.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *gocache.Cache
	r       rate.Limit
	burst   int
}

// NewRateLimiter creates a per-IP limiter: r requests/second, burst up to burst requests.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: gocache.New(idleTTL, sweepInterval),
		r:       r,
		burst:   burst,
	}
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.buckets.Get(ip)
	if !ok {
		l = rate.NewLimiter(rl.r, rl.burst)
	}
	// Re-setting slides the idle expiry forward.
	rl.buckets.SetDefault(ip, l)
	return l.(*rate.Limiter)
}

// Limit is the middleware handler that enforces the rate limit per client IP.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(realIP(r)).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// realIP is the socket peer. Forwarding headers are honoured only when
// chimiddleware.RealIP runs first and rewrites RemoteAddr.
func realIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
