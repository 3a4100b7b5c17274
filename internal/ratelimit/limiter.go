// Package ratelimit throttles login attempts per domain so a misbehaving
// caller cannot hammer an identity provider and trip account lockouts.
package ratelimit

import (
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ErrLimited means the domain's attempt budget is exhausted for now
var ErrLimited = errors.New("ratelimit: attempt budget exhausted")

// Limiter keeps an independent token bucket per domain
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewLimiter builds a keyed limiter.
// attemptsPerMinute: sustained login attempts allowed per domain.
// burst: attempts allowed back to back before the sustained rate applies.
func NewLimiter(attemptsPerMinute float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(attemptsPerMinute / 60.0),
		burst:    burst,
	}
}

func (l *Limiter) bucket(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[domain] = limiter
	}
	return limiter
}

// Allow consumes one attempt for the domain, reporting ErrLimited when the
// bucket is empty
func (l *Limiter) Allow(domain string) error {
	if !l.bucket(domain).Allow() {
		return ErrLimited
	}
	return nil
}

// Tokens reports the attempts currently available for a domain
func (l *Limiter) Tokens(domain string) float64 {
	return l.bucket(domain).Tokens()
}
