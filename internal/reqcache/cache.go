// Package reqcache is a request/response cache keyed by a content hash of
// the request. It puts a mutex, expiry and miss coalescing around an
// lru.Map so it can be shared by concurrent handlers.
package reqcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmurray2011/hoard/internal/logging"
	"github.com/jmurray2011/hoard/pkg/lru"
)

// Options configures a Cache.
type Options struct {
	// Capacity is the maximum number of responses kept. Zero or less is unbounded.
	Capacity int

	// TTL is how long a response stays valid. Zero means responses never expire.
	TTL time.Duration

	// FetchTimeout bounds a shared call made by Fetch. Defaults to
	// DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Logger receives eviction and fetch diagnostics. Defaults to logging.Default().
	Logger logging.Logger
}

// DefaultFetchTimeout is used when Options.FetchTimeout is not set.
const DefaultFetchTimeout = 5 * time.Minute

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Evictions uint64        `json:"evictions"`
	Expired   uint64        `json:"expired"`
	Coalesced uint64        `json:"coalesced"`
	Size      int           `json:"size"`
	Capacity  int           `json:"capacity"`
	TTL       time.Duration `json:"ttl"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries *lru.Map[string, entry[V]]
	ttl     time.Duration
	stats   Stats
	group   singleflight.Group
	timeout time.Duration
	log     logging.Logger
	now     func() time.Time
}

// New creates a Cache.
func New[V any](opts Options) *Cache[V] {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	c := &Cache[V]{
		entries: lru.New[string, entry[V]](opts.Capacity),
		ttl:     opts.TTL,
		timeout: timeout,
		log:     logger.WithField("component", "reqcache"),
		now:     time.Now,
	}
	c.entries.OnEvict(func(key string, _ entry[V]) {
		c.stats.Evictions++
		c.log.Debug("evicted %s", key)
	})
	return c
}

// Get returns the cached response for key. A hit marks the entry most
// recently used; an expired entry is dropped and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(key)
}

func (c *Cache[V]) lookupLocked(key string) (V, bool) {
	var zero V

	e, ok := c.entries.Get(key)
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if c.expiredLocked(e) {
		c.entries.Delete(key)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	return e.value, true
}

func (c *Cache[V]) expiredLocked(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

// Put stores value under key.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(key, entry[V]{value: value, storedAt: c.now()})
}

// Invalidate removes key and reports whether it was cached.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Delete(key)
}

// Purge drops every cached response. Counters are kept.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
}

// Keys returns the cached keys, least recently used first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}

// Resize changes the capacity and evicts any excess immediately. It returns
// the number of responses evicted.
func (c *Cache[V]) Resize(capacity int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.entries.Resize(capacity)
	if n > 0 {
		c.log.Info("resized to %d, evicted %d", capacity, n)
	}
	return n
}

// SetTTL changes the expiry applied to lookups, including entries already stored.
func (c *Cache[V]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.entries.Len()
	s.Capacity = c.entries.Capacity()
	s.TTL = c.ttl
	return s
}

// Fetch returns the cached response for key, calling fn to produce it on a
// miss. Concurrent misses for the same key share a single call to fn. Only
// successful responses are stored. The bool result reports a cache hit.
//
// fn sees the values of the caller that triggered it but not its
// cancellation; it is bounded by Options.FetchTimeout instead. A caller whose
// ctx ends stops waiting and gets ctx.Err() while the others keep waiting.
func (c *Cache[V]) Fetch(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	var zero V
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another caller may have filled it while we waited on the group
		c.mu.Lock()
		if e, ok := c.entries.Peek(key); ok && !c.expiredLocked(e) {
			c.mu.Unlock()
			return e.value, nil
		}
		c.mu.Unlock()

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		v, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, v)
		return v, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}

	if res.Shared {
		c.mu.Lock()
		c.stats.Coalesced++
		c.mu.Unlock()
	}
	if res.Err != nil {
		c.log.Debug("fetch %s failed: %v", key, res.Err)
		return zero, false, res.Err
	}
	if res.Val == nil {
		return zero, false, nil
	}
	v, ok := res.Val.(V)
	if !ok {
		return zero, false, fmt.Errorf("cached value for %s has unexpected type %T", key, res.Val)
	}
	return v, false, nil
}
