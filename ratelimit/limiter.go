// Package ratelimit provides per-subscriber delivery rate limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket limiter keyed by subscriber ID. A bucket is
// created on first use with a full burst and refills continuously at the
// subscriber's configured rate; the burst size equals one second of rate.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
	rate   float64 // tokens per second
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token for the subscriber when available. A rate of 0
// or less means the subscriber is unlimited.
func (l *Limiter) Allow(subscriberID string, rate int) bool {
	if rate <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[subscriberID]
	if !ok {
		b = &bucket{tokens: float64(rate), last: now, rate: float64(rate)}
		l.buckets[subscriberID] = b
	}

	b.tokens = min(b.tokens+now.Sub(b.last).Seconds()*b.rate, b.rate)
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Wait blocks until a token is available or the context is done. A rate of
// 0 or less returns immediately.
func (l *Limiter) Wait(ctx context.Context, subscriberID string, rate int) error {
	if rate <= 0 {
		return nil
	}

	interval := time.Second / time.Duration(rate)
	for !l.Allow(subscriberID, rate) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}

// Reset drops the subscriber's bucket. The next Allow starts a fresh full
// burst, as for a never-seen subscriber.
func (l *Limiter) Reset(subscriberID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, subscriberID)
}
