package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pocketline/smsrouter/internal/routing_service/domain"
)

// sweepInterval is the number of cache stores between opportunistic sweeps of
// expired entries.
const sweepInterval = 256

// TenantResolver is the cache surface the routing engine depends on.
type TenantResolver interface {
	Resolve(ctx context.Context, canonical string) (*domain.TenantProjection, error)
}

type cacheEntry struct {
	projection domain.TenantProjection
	negative   bool
	insertedAt time.Time
	ttl        time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// TenantDirectoryCache is a read-through TTL cache mapping canonical phone
// numbers to tenant projections, backed by the persistent binding store.
// Lookups that find no active binding are negatively cached with a shorter
// TTL so unknown and spam senders do not hammer the backend. Concurrent
// misses for the same key coalesce into a single backend query.
//
// The cache is constructed once at startup and handed to the routing engine;
// it is safe for use from many goroutines.
type TenantDirectoryCache struct {
	repo          domain.TenantBindingRepository
	logger        *slog.Logger
	ttl           time.Duration
	negativeTTL   time.Duration
	lookupTimeout time.Duration

	group singleflight.Group

	mu         sync.RWMutex
	entries    map[string]cacheEntry
	storeCount int
}

func NewTenantDirectoryCache(repo domain.TenantBindingRepository, logger *slog.Logger, ttl, negativeTTL, lookupTimeout time.Duration) *TenantDirectoryCache {
	return &TenantDirectoryCache{
		repo:          repo,
		logger:        logger.With("component", "tenant_cache"),
		ttl:           ttl,
		negativeTTL:   negativeTTL,
		lookupTimeout: lookupTimeout,
		entries:       make(map[string]cacheEntry),
	}
}

// Resolve returns the active tenant projection for a canonical number.
// Returns domain.ErrNotFound when no active binding exists (possibly served
// from the negative cache) and domain.ErrStoreUnavailable when the backend
// could not be queried on a miss.
func (c *TenantDirectoryCache) Resolve(ctx context.Context, canonical string) (*domain.TenantProjection, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[canonical]
	c.mu.RUnlock()

	if ok && !entry.expired(now) {
		if entry.negative {
			tenantCacheLookupsCounter.WithLabelValues("negative_hit").Inc()
			return nil, domain.ErrNotFound
		}
		tenantCacheLookupsCounter.WithLabelValues("hit").Inc()
		projection := entry.projection
		return &projection, nil
	}

	tenantCacheLookupsCounter.WithLabelValues("miss").Inc()

	// The backend lookup is detached from the caller's cancellation so one
	// impatient request cannot fail the flight for every coalesced waiter,
	// and bounded by its own timeout so it cannot hang them either.
	result, err, shared := c.group.Do(canonical, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		return c.lookup(lookupCtx, canonical)
	})
	if shared {
		tenantCacheLookupsCounter.WithLabelValues("coalesced").Inc()
	}
	if err != nil {
		return nil, err
	}

	projection := result.(domain.TenantProjection)
	return &projection, nil
}

// lookup queries the binding store and populates the cache. Backend errors
// are not cached; not-found is cached negatively.
func (c *TenantDirectoryCache) lookup(ctx context.Context, canonical string) (any, error) {
	projection, err := c.repo.FindActiveByNumber(ctx, canonical)
	switch {
	case err == nil:
		c.store(canonical, cacheEntry{projection: *projection, insertedAt: time.Now(), ttl: c.ttl})
		return *projection, nil
	case isNotFound(err):
		c.store(canonical, cacheEntry{negative: true, insertedAt: time.Now(), ttl: c.negativeTTL})
		return domain.TenantProjection{}, domain.ErrNotFound
	default:
		c.logger.ErrorContext(ctx, "binding store lookup failed", "number", canonical, "error", err)
		return domain.TenantProjection{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
}

func (c *TenantDirectoryCache) store(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	c.storeCount++
	if c.storeCount%sweepInterval == 0 {
		now := time.Now()
		for k, e := range c.entries {
			if e.expired(now) {
				delete(c.entries, k)
			}
		}
	}
}

// Invalidate drops the entry for a canonical number, forcing the next
// Resolve to hit the backend. Used when a binding change notification
// arrives before the TTL lapses.
func (c *TenantDirectoryCache) Invalidate(canonical string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, canonical)
}

// Len reports the number of cached entries, expired or not.
func (c *TenantDirectoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
