package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/metrics"
)

// ErrStoreUnavailable wraps counter store failures when the gate fails closed.
var ErrStoreUnavailable = errors.New("admission store unavailable")

// CounterStore is the shared key-value store behind the gate. Incr must be
// atomic across every process sharing the store.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// TTLReader is optionally implemented by stores that can report the remaining
// lifetime of a key. A negative duration means the key exists without an
// expiry. It is only consulted for denied requests.
type TTLReader interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// ExpiryRepairer is optionally implemented by stores that can set an expiry
// only on keys that have none, so a live window is never extended.
type ExpiryRepairer interface {
	ExpireIfUnset(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config holds the quota settings.
type Config struct {
	Limit     int64
	Window    time.Duration
	KeyPrefix string
	// FailOpen admits requests when the store errors.
	FailOpen bool
}

// DefaultConfig mirrors the service defaults: 5 requests per 60 seconds.
func DefaultConfig() Config {
	return Config{
		Limit:     5,
		Window:    time.Minute,
		KeyPrefix: "rate-limit:",
		FailOpen:  true,
	}
}

// Decision is the outcome of Admit.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int64
	// RetryAfter is the remaining window when known; zero otherwise.
	RetryAfter time.Duration
	// Degraded is set when the store failed and the request was let through.
	Degraded bool
	Reason   string
}

// Gate enforces the fixed-window quota.
type Gate struct {
	store  CounterStore
	cfg    Config
	logger *zap.Logger
}

// NewGate builds a Gate over store.
func NewGate(store CounterStore, cfg Config, logger *zap.Logger) (*Gate, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0, got %d", cfg.Limit)
	}
	if cfg.Window < time.Second {
		return nil, fmt.Errorf("window must be at least 1s, got %v", cfg.Window)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, cfg: cfg, logger: logger}, nil
}

// Key returns the store key for identity.
func (g *Gate) Key(identity string) string {
	return g.cfg.KeyPrefix + identity
}

// QuotaMessage describes the quota for rejected callers.
func (g *Gate) QuotaMessage() string {
	return fmt.Sprintf("You've reached the limit of %d requests per %s. Try again later.",
		g.cfg.Limit, describeWindow(g.cfg.Window))
}

// Admit performs one increment and at most one expiry-set for identity. An
// empty identity is a valid bucket like any other.
//
// Incr must be atomic so exactly one caller per window sees 1 and sets the
// expiry. If that Expire fails, or the process dies between INCR and EXPIRE,
// the key is left without a TTL; the first denied request then restores the
// window expiry so the identity is not locked out.
func (g *Gate) Admit(ctx context.Context, identity string) (Decision, error) {
	key := g.Key(identity)
	count, err := g.store.Incr(ctx, key)
	if err != nil {
		return g.storeFailure(identity, "incr", err)
	}
	if count == 1 {
		if err := g.store.Expire(ctx, key, g.cfg.Window); err != nil {
			return g.storeFailure(identity, "expire", err)
		}
	}

	if count > g.cfg.Limit {
		decision := Decision{
			Allowed:    false,
			Count:      count,
			Limit:      g.cfg.Limit,
			RetryAfter: g.remaining(ctx, key),
			Reason:     g.QuotaMessage(),
		}
		metrics.ObserveAdmission("deny")
		g.logger.Warn("rate limit exceeded",
			zap.String("identity", identity),
			zap.Int64("count", count),
			zap.Int64("limit", g.cfg.Limit),
		)
		return decision, nil
	}

	metrics.ObserveAdmission("allow")
	return Decision{Allowed: true, Count: count, Limit: g.cfg.Limit}, nil
}

func (g *Gate) storeFailure(identity, op string, err error) (Decision, error) {
	metrics.ObserveAdmission("error")
	if g.cfg.FailOpen {
		g.logger.Warn("admission store error, failing open",
			zap.String("identity", identity),
			zap.String("op", op),
			zap.Error(err),
		)
		return Decision{Allowed: true, Limit: g.cfg.Limit, Degraded: true}, nil
	}
	g.logger.Error("admission store error, failing closed",
		zap.String("identity", identity),
		zap.String("op", op),
		zap.Error(err),
	)
	return Decision{Limit: g.cfg.Limit}, fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (g *Gate) remaining(ctx context.Context, key string) time.Duration {
	reader, ok := g.store.(TTLReader)
	if !ok {
		return 0
	}
	ttl, err := reader.TTL(ctx, key)
	if err != nil {
		return 0
	}
	if ttl < 0 {
		return g.restoreExpiry(ctx, reader, key)
	}
	return ttl
}

// restoreExpiry gives a key stranded without a TTL a fresh window and returns
// the time left in it.
func (g *Gate) restoreExpiry(ctx context.Context, reader TTLReader, key string) time.Duration {
	var err error
	if repairer, ok := g.store.(ExpiryRepairer); ok {
		var set bool
		set, err = repairer.ExpireIfUnset(ctx, key, g.cfg.Window)
		if err == nil && !set {
			// Another request restored it first.
			if ttl, terr := reader.TTL(ctx, key); terr == nil && ttl > 0 {
				return ttl
			}
			return 0
		}
	} else {
		err = g.store.Expire(ctx, key, g.cfg.Window)
	}
	if err != nil {
		g.logger.Warn("restore window expiry failed", zap.String("key", key), zap.Error(err))
		return 0
	}
	g.logger.Warn("restored missing window expiry", zap.String("key", key))
	return g.cfg.Window
}

func describeWindow(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "minute"
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return fmt.Sprintf("%d seconds", d/time.Second)
	}
}
