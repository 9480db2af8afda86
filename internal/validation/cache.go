// Package validation implements the PhoneValidationCache (§4.1): a 3-tier
// cache (in-process -> optional shared KV -> durable table) answering
// "is address A a deliverable recipient on the chat platform", grounded on
// the teacher's internal/suppression/engine.go layered-lookup idiom
// (bloom filter -> sorted array -> singleton manager), here keyed by
// time-bounded TTL tiers instead of a static suppression list.
package validation

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
)

// Transport is the subset of ChatTransport the cache needs: existence
// checks against the external platform (§6).
type Transport interface {
	ExistsOnPlatform(ctx context.Context, address string) (exists bool, handle string, err error)
}

// L3Store is the durable-table tier, implemented by
// internal/repository/postgres against the phone_validation_cache table
// (§6 persisted state layout).
type L3Store interface {
	Get(ctx context.Context, address string) (*domain.ValidationCacheEntry, bool, error)
	Put(ctx context.Context, entry domain.ValidationCacheEntry) error
}

// Result is what Lookup/Validate return to the caller.
type Result struct {
	Exists bool
	Handle string
	Layer  domain.CacheLayer
}

type l1Entry struct {
	entry     domain.ValidationCacheEntry
	expiresAt time.Time
}

// Cache is the PhoneValidationCache. L2 and L3 are optional — a nil redis
// client or nil L3Store causes the cache to operate with fewer tiers,
// never failing a lookup because a layer is unavailable (§4.1 guarantee).
type Cache struct {
	mu    sync.RWMutex
	l1    map[string]l1Entry
	l1TTL time.Duration
	l2TTL time.Duration
	l3TTL time.Duration

	redisClient *redis.Client
	l3          L3Store
}

// Config tunes the three TTLs; zero values fall back to spec defaults
// (1h/24h/7d).
type Config struct {
	L1TTL time.Duration
	L2TTL time.Duration
	L3TTL time.Duration
}

// NewCache creates a PhoneValidationCache. redisClient and l3 may be nil.
func NewCache(cfg Config, redisClient *redis.Client, l3 L3Store) *Cache {
	if cfg.L1TTL == 0 {
		cfg.L1TTL = time.Hour
	}
	if cfg.L2TTL == 0 {
		cfg.L2TTL = 24 * time.Hour
	}
	if cfg.L3TTL == 0 {
		cfg.L3TTL = 7 * 24 * time.Hour
	}
	return &Cache{
		l1:          make(map[string]l1Entry),
		l1TTL:       cfg.L1TTL,
		l2TTL:       cfg.L2TTL,
		l3TTL:       cfg.L3TTL,
		redisClient: redisClient,
		l3:          l3,
	}
}

// Lookup checks L1, then L2, then L3, returning a Result and the layer it
// was found at. On a hit at layer N it warms every faster layer. Never
// blocks on the background queue. Returns ok=false on a clean MISS across
// all layers.
func (c *Cache) Lookup(ctx context.Context, address string) (Result, bool) {
	if res, ok := c.lookupL1(address); ok {
		return res, true
	}

	if res, ok := c.lookupL2(ctx, address); ok {
		c.warmEntry(ctx, address, res, domain.LayerL1)
		return res, true
	}

	if res, ok := c.lookupL3(ctx, address); ok {
		c.warmEntry(ctx, address, res, domain.LayerL1, domain.LayerL2)
		return res, true
	}

	return Result{}, false
}

// warmEntry writes a hit found at a slower layer into every faster layer
// listed in targets, best-effort (errors are logged and swallowed, per
// §4.1).
func (c *Cache) warmEntry(ctx context.Context, address string, res Result, targets ...domain.CacheLayer) {
	entry := domain.ValidationCacheEntry{
		Address:        address,
		Exists:         res.Exists,
		ProviderHandle: res.Handle,
		ValidatedAt:    time.Now(),
	}
	for _, t := range targets {
		switch t {
		case domain.LayerL1:
			c.mu.Lock()
			c.l1[address] = l1Entry{entry: entry, expiresAt: time.Now().Add(c.l1TTL)}
			c.mu.Unlock()
		case domain.LayerL2:
			if c.redisClient == nil {
				continue
			}
			val := "0"
			if res.Exists {
				val = "1"
			}
			if err := c.redisClient.Set(ctx, redisKey(address), val, c.l2TTL).Err(); err != nil {
				logger.Warn("validation: L2 warm failed", "address", address, "error", err.Error())
			}
		}
	}
}

func (c *Cache) lookupL1(address string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.l1[address]
	if !ok || time.Now().After(e.expiresAt) {
		return Result{}, false
	}
	return Result{Exists: e.entry.Exists, Handle: e.entry.ProviderHandle, Layer: domain.LayerL1}, true
}

func (c *Cache) lookupL2(ctx context.Context, address string) (Result, bool) {
	if c.redisClient == nil {
		return Result{}, false
	}
	val, err := c.redisClient.Get(ctx, redisKey(address)).Result()
	if err == redis.Nil {
		return Result{}, false
	}
	if err != nil {
		logger.Warn("validation: L2 lookup failed, downgrading to L3", "address", address, "error", err.Error())
		return Result{}, false
	}
	return Result{Exists: val == "1", Layer: domain.LayerL2}, true
}

func (c *Cache) lookupL3(ctx context.Context, address string) (Result, bool) {
	if c.l3 == nil {
		return Result{}, false
	}
	entry, ok, err := c.l3.Get(ctx, address)
	if err != nil {
		logger.Warn("validation: L3 lookup failed", "address", address, "error", err.Error())
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	// Lazy TTL eviction on read (§4.1 guarantee).
	if time.Since(entry.ValidatedAt) > c.l3TTL {
		return Result{}, false
	}
	return Result{Exists: entry.Exists, Handle: entry.ProviderHandle, Layer: domain.LayerL3}, true
}

// Validate synchronously asks transport on a MISS, then writes through all
// three layers (best-effort for L2/L3). Counts as one validation.
// Transport failure yields {exists:false, error} and is NOT cached, per
// §4.1 error conditions.
func (c *Cache) Validate(ctx context.Context, address string, transport Transport) (Result, error) {
	if res, ok := c.Lookup(ctx, address); ok {
		return res, nil
	}

	exists, handle, err := transport.ExistsOnPlatform(ctx, address)
	if err != nil {
		return Result{Exists: false}, err
	}

	entry := domain.ValidationCacheEntry{
		Address:        address,
		Exists:         exists,
		ProviderHandle: handle,
		ValidatedAt:    time.Now(),
	}
	c.writeThrough(ctx, entry)

	return Result{Exists: exists, Handle: handle, Layer: domain.LayerNone}, nil
}

// writeThrough propagates a freshly-validated entry to L1, then
// best-effort to L2 and L3. A layer failure is logged and downgraded —
// never surfaced to the caller, per §4.1.
func (c *Cache) writeThrough(ctx context.Context, entry domain.ValidationCacheEntry) {
	c.mu.Lock()
	c.l1[entry.Address] = l1Entry{entry: entry, expiresAt: time.Now().Add(c.l1TTL)}
	c.mu.Unlock()

	if c.redisClient != nil {
		val := "0"
		if entry.Exists {
			val = "1"
		}
		if err := c.redisClient.Set(ctx, redisKey(entry.Address), val, c.l2TTL).Err(); err != nil {
			logger.Warn("validation: L2 write failed, continuing", "address", entry.Address, "error", err.Error())
		}
	}

	if c.l3 != nil {
		if err := c.l3.Put(ctx, entry); err != nil {
			logger.Warn("validation: L3 write failed, continuing", "address", entry.Address, "error", err.Error())
		}
	}
}

func redisKey(address string) string {
	return "validation:" + address
}
