package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket is a single token bucket for one rate-limit key.
type bucket struct {
	tokens     float64
	lastAccess time.Time
}

// refill adds tokens for the time elapsed since the last access, capped at
// burst, and advances the access time.
func (b *bucket) refill(now time.Time, rate, burst float64) {
	b.tokens += now.Sub(b.lastAccess).Seconds() * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.lastAccess = now
}

// MemoryLimiter implements Limiter with an in-memory token bucket per key.
// Each key gets an independent bucket with a configurable refill rate and
// burst capacity. Buckets idle past staleThreshold are evicted by a sweeper
// goroutine, spawned lazily on the first request so an idle limiter costs
// nothing.
type MemoryLimiter struct {
	rate  float64 // tokens added per second
	burst float64 // maximum tokens (bucket capacity)

	mu       sync.Mutex
	buckets  map[string]*bucket
	sweeping bool

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a token bucket limiter.
//   - rate: sustained requests per second per key
//   - burst: maximum burst size (token bucket capacity)
//
// Call Close to stop the bucket sweeper.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
}

// Allow consumes one token from the bucket for key. Returns true if a token
// was available (request should proceed), false otherwise (rate limited).
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sweeping {
		m.sweeping = true
		go m.sweepLoop()
	}

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		// First request for this key: start with a full bucket minus one token.
		m.buckets[key] = &bucket{
			tokens:     m.burst - 1,
			lastAccess: now,
		}
		return true, nil
	}

	b.refill(now, m.rate, m.burst)
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close stops the bucket sweeper. Safe to call multiple times.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

const (
	staleThreshold = 10 * time.Minute
	sweepInterval  = time.Minute
)

func (m *MemoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep(time.Now().Add(-staleThreshold))
		}
	}
}

// sweep evicts buckets not accessed since cutoff.
func (m *MemoryLimiter) sweep(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, b := range m.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
