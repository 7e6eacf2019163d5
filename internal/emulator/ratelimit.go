// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package emulator

import (
	"cmp"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps the number of tracked IPs; the least recently seen
	// are evicted during cleanup. Default: 10000.
	MaxVisitors int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return chromaerr.Errorf(chromaerr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return chromaerr.Errorf(chromaerr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return chromaerr.Errorf(chromaerr.CodeServerConfigInvalid,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimitMiddleware enforces per-IP token buckets and answers excess
// requests with 429 and Retry-After. The done channel stops cleanup.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
	)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				evicted := sweepVisitors(visitors, time.Now(), 10*time.Minute, cfg.MaxVisitors)
				remaining := len(visitors)
				mu.Unlock()
				if evicted > 0 {
					slog.Debug("rate limiter visitors evicted", "evicted", evicted, "remaining", remaining)
				}
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			mu.Lock()
			v, ok := visitors[ip]
			if !ok {
				v = &visitor{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
				visitors[ip] = v
			}
			v.lastSeen = time.Now()
			allowed := v.limiter.Allow()
			mu.Unlock()

			if !allowed {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sweepVisitors drops entries idle longer than stale, then the least
// recently seen until at most limit remain. Returns the number removed.
func sweepVisitors(visitors map[string]*visitor, now time.Time, stale time.Duration, limit int) int {
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	removed := 0
	entries := make([]entry, 0, len(visitors))
	for ip, v := range visitors {
		if now.Sub(v.lastSeen) > stale {
			delete(visitors, ip)
			removed++
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
	}

	if limit > 0 && len(entries) > limit {
		slices.SortFunc(entries, func(a, b entry) int {
			return cmp.Compare(a.lastSeen.UnixNano(), b.lastSeen.UnixNano())
		})
		for _, e := range entries[:len(entries)-limit] {
			delete(visitors, e.ip)
			removed++
		}
	}
	return removed
}
