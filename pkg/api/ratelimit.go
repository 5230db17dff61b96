// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stacklok/oauthd/pkg/config"
)

// limiterIdleEviction is how long an idle per-client limiter is retained.
const limiterIdleEviction = 10 * time.Minute

// limiter applies a token-bucket rate limit per remote address.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLimiter builds a limiter allowing cfg.Max requests per cfg.Window.
func newLimiter(cfg config.RateLimit) *limiter {
	window := cfg.Window
	if window == 0 {
		window = time.Duration(cfg.WindowSeconds) * time.Second
	}
	return &limiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(window / time.Duration(cfg.Max)),
		burst:   cfg.Max,
	}
}

// Handler is the middleware applying the limit.
func (l *limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "invalid_request", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cl, ok := l.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
		l.evictIdleLocked(now)
	}
	cl.lastSeen = now

	return cl.limiter.Allow()
}

// evictIdleLocked drops limiters not seen recently. Caller holds the lock.
func (l *limiter) evictIdleLocked(now time.Time) {
	for key, cl := range l.clients {
		if now.Sub(cl.lastSeen) > limiterIdleEviction {
			delete(l.clients, key)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
