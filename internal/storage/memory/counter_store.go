// Package memory holds in-process store implementations for development and
// tests.
package memory

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// NoExpiry is the TTL reported for a key that exists without an expiry.
const NoExpiry time.Duration = -1

type counter struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

// CounterStore is a single-process counter store with key expiry. All
// operations run under one mutex, so increments are atomic.
type CounterStore struct {
	mu       sync.Mutex
	clock    Clock
	counters map[string]*counter
}

// NewCounterStore creates an empty store.
func NewCounterStore(clock Clock) *CounterStore {
	return &CounterStore{
		clock:    clock,
		counters: make(map[string]*counter),
	}
}

// Incr increments key, creating it at 1 when missing or expired.
func (s *CounterStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(key)
	if c == nil {
		c = &counter{}
		s.counters[key] = c
	}
	c.value++
	return c.value, nil
}

// Expire sets key to expire ttl from now. It is a no-op for missing keys.
func (s *CounterStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.live(key); c != nil {
		c.expiresAt = s.clock.Now().Add(ttl)
	}
	return nil
}

// ExpireIfUnset sets key to expire ttl from now only when it has no expiry.
// It reports whether the expiry was set.
func (s *CounterStore) ExpireIfUnset(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(key)
	if c == nil || !c.expiresAt.IsZero() {
		return false, nil
	}
	c.expiresAt = s.clock.Now().Add(ttl)
	return true, nil
}

// TTL reports the remaining lifetime of key: 0 when it is missing, NoExpiry
// when it never expires.
func (s *CounterStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(key)
	if c == nil {
		return 0, nil
	}
	if c.expiresAt.IsZero() {
		return NoExpiry, nil
	}
	return c.expiresAt.Sub(s.clock.Now()), nil
}

// Sweep drops expired keys. Expired keys are also ignored lazily, so calling
// Sweep only bounds memory.
func (s *CounterStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	removed := 0
	for key, c := range s.counters {
		if expired(c, now) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps every interval until ctx is done.
func (s *CounterStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// live returns the counter for key, deleting it first if it has expired.
// Callers hold s.mu.
func (s *CounterStore) live(key string) *counter {
	c, ok := s.counters[key]
	if !ok {
		return nil
	}
	if expired(c, s.clock.Now()) {
		delete(s.counters, key)
		return nil
	}
	return c
}

func expired(c *counter, now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}
