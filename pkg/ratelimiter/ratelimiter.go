// Package ratelimiter wraps golang.org/x/time/rate token buckets for outbound
// API throttling and per-client inbound limiting.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimiter interface {
	TakeToken() bool
	Wait(ctx context.Context) error
}

// TokenBucket is a single shared limiter.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows refillRate tokens per second with the given burst.
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(refillRate), int(capacity))}
}

func (tb *TokenBucket) TakeToken() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one bucket per key, for example per client IP.
// Requests are spread over window with at most requests per window.
type KeyedLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	nowFunc func() time.Time
}

func NewKeyedLimiter(requests int, window time.Duration) *KeyedLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &KeyedLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		idleTTL: 2 * window,
		nowFunc: time.Now,
	}
}

// Allow reports whether key may proceed. When it may not, the returned
// duration is how long until the next token.
func (k *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	now := k.nowFunc()

	k.mu.Lock()
	c, ok := k.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.clients[key] = c
	}
	c.lastSeen = now
	k.mu.Unlock()

	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Prune drops buckets that have been idle for longer than twice the window.
func (k *KeyedLimiter) Prune() int {
	now := k.nowFunc()
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, c := range k.clients {
		if now.Sub(c.lastSeen) > k.idleTTL {
			delete(k.clients, key)
			removed++
		}
	}
	return removed
}
