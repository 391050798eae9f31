// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	deepcopy "github.com/tiendc/go-deepcopy"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxSize is the default maximum number of entries.
	DefaultMaxSize = 1000

	// DefaultTTL is the default time to live of an entry.
	DefaultTTL = time.Hour
)

// ErrNotFound is returned by [Cache.MustGet] when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
}

// Cache is a bounded least-recently-used cache whose entries also expire after a fixed time to live.
//
// A single mutex guards all state. Reads refresh recency but never extend the expiry.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[K, entry[V]]
	group singleflight.Group
	// flights maps keys with a load in progress to their singleflight key.
	flights  map[K]string
	flightID uint64

	maxSize         int
	ttl             time.Duration
	cleanupInterval time.Duration
	copyValues      bool
	onEvict         func(K, V)
	now             func() time.Time
	logger          *slog.Logger

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	stop chan struct{}
	done chan struct{}
}

// New creates a new [Cache].
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// simplelru only rejects non-positive sizes, which the options already guard against.
	lru, _ := simplelru.NewLRU[K, entry[V]](o.maxSize, nil)

	c := &Cache[K, V]{
		lru:             lru,
		flights:         make(map[K]string),
		maxSize:         o.maxSize,
		ttl:             o.ttl,
		cleanupInterval: o.cleanupInterval,
		copyValues:      o.copyValues,
		now:             o.now,
		logger:          o.logger,
	}
	return c
}

// OnEvict registers fn to be called when an entry is evicted for capacity or removed because it expired.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) *Cache[K, V] {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
	return c
}

// Get returns the value stored for key.
//
// Expired entries are removed and reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if e.expired(c.now()) {
		c.lru.Remove(key)
		c.expirations++
		c.misses++
		c.notify(key, e.value)
		return zero, false
	}

	c.hits++
	return c.copyOut(e.value), true
}

// MustGet is like [Cache.Get] but reports a miss as [ErrNotFound].
func (c *Cache[K, V]) MustGet(key K) (V, error) {
	v, ok := c.Get(key)
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return v, nil
}

// Set stores value under key with the cache's default time to live.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key, expiring after ttl. A non-positive ttl never expires.
//
// Updating an existing key refreshes both its expiry and its recency. Inserting into a full
// cache evicts the least recently used entry first.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: c.copyIn(value)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	if !c.lru.Contains(key) && c.lru.Len() >= c.maxSize {
		if oldKey, old, ok := c.lru.RemoveOldest(); ok {
			c.evictions++
			c.notify(oldKey, old.value)
		}
	}
	c.lru.Add(key, e)
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Clear removes every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of stored entries, including expired ones not yet cleaned up.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the keys ordered from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	keys := c.lru.Keys()
	c.mu.Unlock()

	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.lru.Len(),
		MaxSize:     c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// ResetStats zeroes the hit, miss, eviction and expiration counters.
func (c *Cache[K, V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions, c.expirations = 0, 0, 0, 0
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *Cache[K, V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok || !e.expired(now) {
			continue
		}
		c.lru.Remove(key)
		c.expirations++
		c.notify(key, e.value)
		removed++
	}
	return removed
}

// GetOrLoad returns the cached value for key, calling load on a miss.
//
// Concurrent misses for the same key share a single call to load. Errors are not cached.
// load runs detached from the cancellation of the caller that started it, so one caller
// giving up never fails the others; each caller stops waiting when its own ctx is done.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	flight := c.flightKey(key)
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		defer c.endFlight(key, flight)

		// another caller may have filled the entry while we waited on the group
		c.mu.Lock()
		e, ok := c.lru.Peek(key)
		fresh := ok && !e.expired(c.now())
		c.mu.Unlock()
		if fresh {
			return e.value, nil
		}

		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return c.copyOut(res.Val.(V)), nil
	}
}

// flightKey returns the singleflight key of key. Keys are numbered while a load is in
// progress, so distinct keys never share a flight whatever their string form.
func (c *Cache[K, V]) flightKey(key K) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[key]; ok {
		return f
	}
	c.flightID++
	f := strconv.FormatUint(c.flightID, 10)
	c.flights[key] = f
	return f
}

func (c *Cache[K, V]) endFlight(key K, flight string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights[key] == flight {
		delete(c.flights, key)
	}
}

// StartJanitor starts a goroutine removing expired entries every cleanup interval until ctx is
// done or [Cache.Close] is called. It is a no-op when no cleanup interval is configured.
func (c *Cache[K, V]) StartJanitor(ctx context.Context) {
	c.mu.Lock()
	if c.cleanupInterval <= 0 || c.stop != nil {
		c.mu.Unlock()
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if n := c.Cleanup(); n > 0 {
					c.logger.Debug("removed expired cache entries", slog.Int("count", n))
				}
			}
		}
	}()
}

// Close stops the janitor goroutine, if any, and waits for it to exit.
func (c *Cache[K, V]) Close() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *Cache[K, V]) notify(key K, value V) {
	if c.onEvict != nil {
		c.onEvict(key, value)
	}
}

func (c *Cache[K, V]) copyIn(v V) V {
	if !c.copyValues {
		return v
	}
	var dst V
	if err := deepcopy.Copy(&dst, v); err != nil {
		c.logger.Warn("failed to copy cache value, storing original", slog.String("error", err.Error()))
		return v
	}
	return dst
}

func (c *Cache[K, V]) copyOut(v V) V {
	return c.copyIn(v)
}
