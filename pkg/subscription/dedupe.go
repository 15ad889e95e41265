package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper remembers applied webhook event IDs so redeliveries can be
// skipped before touching storage. Keys are remembered only after the event
// is committed; concurrent deliveries of one event both reach storage, where
// payment uniqueness by external reference settles them.
type EventDeduper interface {
	// Seen reports whether key was remembered and has not expired.
	Seen(ctx context.Context, key string) (bool, error)
	// Remember marks key as applied.
	Remember(ctx context.Context, key string) error
}

const DefaultDedupeTTL = 72 * time.Hour

// RedisDeduper keeps applied keys in Redis with a TTL.
type RedisDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper panics if client is nil. A non-positive ttl uses DefaultDedupeTTL.
func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("subscription: redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, prefix: "webhook:seen:", ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Remember(ctx context.Context, key string) error {
	return d.client.Set(ctx, d.prefix+key, time.Now().Unix(), d.ttl).Err()
}

// MemoryDeduper is an in-process EventDeduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (d *MemoryDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[key]
	if ok && !d.now().Before(exp) {
		delete(d.seen, key)
		return false, nil
	}
	return ok, nil
}

func (d *MemoryDeduper) Remember(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = d.now().Add(d.ttl)
	return nil
}
