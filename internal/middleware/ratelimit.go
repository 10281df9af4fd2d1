// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is the token bucket of one client.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles clients by IP with token buckets. A bucket holds
// burst tokens and refills one token every window/burst, so a client may
// spend its whole allowance at once and then continues at the steady
// rate. Idle buckets are swept in the background.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// NewRateLimiter allows burst requests per window for each client IP.
func NewRateLimiter(burst int, window time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		every:   rate.Every(window / time.Duration(burst)),
		burst:   burst,
		idle:    window,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.sweep()
			case <-rl.stopCh:
				return
			}
		}
	}()

	return rl
}

// Stop ends the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopped.Do(func() { close(rl.stopCh) })
}

// reserve takes a token for key. It returns 0 when the request may go
// ahead, or how long the client must wait for its next token.
func (rl *RateLimiter) reserve(key string) time.Duration {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		return 0
	}
	missing := 1 - b.limiter.TokensAt(now)
	return time.Duration(missing / float64(rl.every) * float64(time.Second))
}

// sweep drops buckets idle long enough to have refilled completely.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Middleware rejects throttled clients with 429 and a Retry-After header
// in whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if wait := rl.reserve(ip); wait > 0 {
			retry := int(math.Ceil(wait.Seconds()))
			slog.Warn("rate limited", "ip", ip, "path", r.URL.Path, "retry_after", retry)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the leftmost X-Forwarded-For address, else X-Real-IP,
// else the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
