package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/models/market"
)

type CacheConfig struct {
	// Enabled determines if caching is active
	// When false, every call goes straight to the wrapped store
	Enabled bool

	// DefaultTTL is the time-to-live for cached supplier lists and records
	DefaultTTL time.Duration

	// MaxSize is the maximum number of entries to keep
	// When exceeded, oldest entries are removed first. 0 means unlimited
	MaxSize int

	// CleanupInterval defines how often expired entries are swept
	CleanupInterval time.Duration
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:         true,
		DefaultTTL:      15 * time.Minute,
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
}

type cacheEntry struct {
	suppliers []market.Supplier
	createdAt time.Time
	expiresAt time.Time
}

// CachedStore keeps supplier reads from the wrapped DocumentStore in memory
// for a while. Profiles, favorites and relationships always pass through.
type CachedStore struct {
	DocumentStore

	entries sync.Map // map[string]*cacheEntry

	// generation counts invalidations. A read only stores its result when
	// no invalidation happened while it was in flight.
	mu         sync.Mutex
	generation atomic.Uint64

	config   CacheConfig
	log      zerolog.Logger
	now      func() time.Time
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewCachedStore wraps next and starts the cleanup routine if configured.
func NewCachedStore(next DocumentStore, config CacheConfig, log zerolog.Logger) *CachedStore {
	c := &CachedStore{
		DocumentStore: next,
		config:        config,
		log:           log.With().Str("component", "supplier_cache").Logger(),
		now:           time.Now,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	if config.Enabled && config.CleanupInterval > 0 {
		go c.startCleanupRoutine()
		c.log.Info().
			Dur("interval", config.CleanupInterval).
			Int("max_size", config.MaxSize).
			Dur("ttl", config.DefaultTTL).
			Msg("Started cache cleanup routine")
	} else {
		close(c.done)
	}

	return c
}

func (c *CachedStore) startCleanupRoutine() {
	defer close(c.done)

	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopChan:
			c.log.Info().Msg("Stopping cache cleanup routine")
			return
		}
	}
}

func (c *CachedStore) cleanup() {
	type keyed struct {
		key   any
		entry *cacheEntry
	}

	var (
		now     = c.now()
		expired int
		removed int
		live    []keyed
	)

	c.entries.Range(func(key, value any) bool {
		entry := value.(*cacheEntry)
		if now.After(entry.expiresAt) {
			c.entries.Delete(key)
			expired++
		} else {
			live = append(live, keyed{key: key, entry: entry})
		}
		return true
	})

	if c.config.MaxSize > 0 && len(live) > c.config.MaxSize {
		sort.Slice(live, func(i, j int) bool {
			return live[i].entry.createdAt.Before(live[j].entry.createdAt)
		})
		for _, k := range live[:len(live)-c.config.MaxSize] {
			c.entries.Delete(k.key)
			removed++
		}
	}

	c.log.Debug().
		Int("expired_removed", expired).
		Int("size_limit_removed", removed).
		Int("remaining_entries", len(live)-removed).
		Msg("Completed cache cleanup")
}

func listKey(q *SupplierQuery) string {
	if q == nil {
		return "list||0"
	}
	return fmt.Sprintf("list|%s|%s|%g", q.Category, q.City, q.MinRating)
}

func supplierKey(id string) string {
	return "supplier|" + id
}

func (c *CachedStore) load(key string) ([]market.Supplier, bool) {
	if !c.config.Enabled {
		return nil, false
	}
	value, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	entry := value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}
	return cloneSuppliers(entry.suppliers), true
}

func (c *CachedStore) save(key string, generation uint64, suppliers []market.Supplier) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation.Load() != generation {
		c.log.Debug().Str("key", key).Msg("Discarding read that raced an invalidation")
		return
	}
	now := c.now()
	c.entries.Store(key, &cacheEntry{
		suppliers: cloneSuppliers(suppliers),
		createdAt: now,
		expiresAt: now.Add(c.config.DefaultTTL),
	})
	c.log.Debug().
		Str("key", key).
		Int("suppliers", len(suppliers)).
		Msg("Stored suppliers in cache")
}

func (c *CachedStore) ListSuppliers(ctx context.Context, q *SupplierQuery) ([]market.Supplier, error) {
	key := listKey(q)
	if suppliers, ok := c.load(key); ok {
		c.log.Debug().Str("key", key).Msg("Serving suppliers from cache")
		return suppliers, nil
	}

	generation := c.generation.Load()
	suppliers, err := c.DocumentStore.ListSuppliers(ctx, q)
	if err != nil {
		return nil, err
	}
	c.save(key, generation, suppliers)
	return suppliers, nil
}

func (c *CachedStore) GetSupplier(ctx context.Context, id string) (*market.Supplier, error) {
	key := supplierKey(id)
	if suppliers, ok := c.load(key); ok && len(suppliers) == 1 {
		return &suppliers[0], nil
	}

	generation := c.generation.Load()
	s, err := c.DocumentStore.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	c.save(key, generation, []market.Supplier{*s})
	return s, nil
}

// PutSupplier writes through and drops every cached supplier read.
func (c *CachedStore) PutSupplier(ctx context.Context, s *market.Supplier) error {
	if err := c.DocumentStore.PutSupplier(ctx, s); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate clears all cached entries and discards reads still in flight.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation.Add(1)
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Stop shuts down the cleanup routine and clears the cache.
func (c *CachedStore) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		<-c.done
		c.Invalidate()
		c.log.Info().Msg("Cache cleared and stopped")
	})
}

func cloneSuppliers(in []market.Supplier) []market.Supplier {
	out := make([]market.Supplier, len(in))
	for i := range in {
		out[i] = in[i]
		if in[i].Products != nil {
			out[i].Products = append([]string(nil), in[i].Products...)
		}
	}
	return out
}
