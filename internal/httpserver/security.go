package httpserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"cryptosim/internal/httputil"
)

// SecurityHeaders adds standard security headers to protect against common attacks
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:;")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		next.ServeHTTP(w, r)
	})
}

const (
	rateLimitPerSec = 10
	rateLimitBurst  = 30
	visitorTTL      = 3 * time.Minute
	pruneEvery      = time.Minute
)

// rateLimiter is a per-IP token bucket. One instance belongs to one router;
// idle visitors are pruned inline on the request path, so there is no
// background goroutine to stop.
type rateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

type visitor struct {
	lastSeen time.Time
	tokens   float64
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

// allow refills the visitor's bucket for the elapsed time and takes a token.
// Entries idle past visitorTTL are dropped at most once per pruneEvery.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastPrune) > pruneEvery {
		for addr, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, addr)
			}
		}
		rl.lastPrune = now
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{tokens: rateLimitBurst, lastSeen: now}
		rl.visitors[ip] = v
	}

	elapsed := now.Sub(v.lastSeen).Seconds()
	v.lastSeen = now

	v.tokens += elapsed * rateLimitPerSec
	if v.tokens > rateLimitBurst {
		v.tokens = rateLimitBurst
	}

	if v.tokens < 1 {
		return false
	}
	v.tokens -= 1
	return true
}

// middleware rejects requests whose source IP has exhausted its bucket.
// Rate: 10 requests/sec, Burst: 30
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip, time.Now()) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{Error: "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
