// Package redis implements the shared admission counter on Redis.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Options configures the Redis connection. There is no default address.
type Options struct {
	Addr        string
	Username    string
	Password    string
	DB          int
	DialTimeout time.Duration
	TLS         bool
}

// NoExpiry is the TTL reported for a key that exists without an expiry.
const NoExpiry time.Duration = -1

// CounterStore backs the admission gate with Redis INCR/EXPIRE. INCR is
// atomic on the server, which is what the gate relies on.
type CounterStore struct {
	rdb goredis.Cmdable
}

// NewCounterStore wraps an existing client.
func NewCounterStore(rdb goredis.Cmdable) *CounterStore {
	return &CounterStore{rdb: rdb}
}

// NewClient builds a client without contacting the server.
func NewClient(opts Options) *goredis.Client {
	ro := &goredis.Options{
		Addr:        opts.Addr,
		Username:    opts.Username,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	}
	if opts.TLS {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return goredis.NewClient(ro)
}

// Connect builds a client and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*goredis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := NewClient(opts)

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: expected PONG, got %s", pong)
	}
	return client, nil
}

// Incr atomically increments key.
func (s *CounterStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

// Expire sets the key's time to live.
func (s *CounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// ExpireIfUnset sets key to expire after ttl only when it has no expiry
// (EXPIRE NX, Redis 7.0+). It reports whether the expiry was set.
func (s *CounterStore) ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := s.rdb.ExpireNX(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire nx %s: %w", key, err)
	}
	return set, nil
}

// TTL reports the remaining lifetime of key: 0 when it is missing, NoExpiry
// when it never expires.
func (s *CounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl %s: %w", key, err)
	}
	// go-redis passes the -1 (no expiry) and -2 (missing) replies through as
	// raw durations.
	switch {
	case ttl == -1:
		return NoExpiry, nil
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}
