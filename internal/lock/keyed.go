// Package lock provides per-key advisory mutual exclusion within a process.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/metrics"
)

// Keyed grants at most one holder per key. Waiters block on the holder's
// release channel instead of polling, and re-check once it is closed.
type Keyed struct {
	name string
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewKeyed(name string) *Keyed {
	return &Keyed{name: name, held: make(map[string]chan struct{})}
}

// Acquire blocks until key is free or ctx is done. The returned release
// function is idempotent and must be called, usually with defer.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	for {
		k.mu.Lock()
		wait, busy := k.held[key]
		if !busy {
			done := make(chan struct{})
			k.held[key] = done
			k.mu.Unlock()
			metrics.LockWaitDuration.WithLabelValues(k.name).Observe(time.Since(start).Seconds())

			var once sync.Once
			return func() {
				once.Do(func() {
					k.mu.Lock()
					delete(k.held, key)
					k.mu.Unlock()
					close(done)
				})
			}, nil
		}
		k.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// InProgress reports whether key is currently held.
func (k *Keyed) InProgress(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.held[key]
	return ok
}

// Len returns the number of held keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.held)
}
