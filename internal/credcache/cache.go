// Package credcache memoizes per-instance connection parameters so a burst
// of creation requests against one panel does not hammer the registry.
//
// Eviction is two-fold: entries older than the TTL read as misses, and once
// the entry count passes the high-water mark only the most recently accessed
// entries survive. Concurrent misses for one key are collapsed through a
// single-flight group.
package credcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gateprov/gateprov/internal/registry"
)

// Options configures a Cache.
type Options struct {
	// TTL after which an entry reads as a miss.
	TTL time.Duration
	// HighWater is the entry count that triggers eviction.
	HighWater int
	// Keep is how many most-recently-accessed entries survive eviction.
	Keep int
}

// Recorder receives cache events for metrics.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEviction(reason string)
}

type entry struct {
	inst        registry.Instance
	storedAt    time.Time
	lastAccess  time.Time
	accessCount int64
}

// Cache is a process-wide, concurrently mutable credential cache.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	opts     Options
	group    singleflight.Group
	recorder Recorder
	now      func() time.Time
}

// New creates a cache.
func New(opts Options) *Cache {
	if opts.TTL == 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.HighWater == 0 {
		opts.HighWater = 64
	}
	if opts.Keep == 0 || opts.Keep > opts.HighWater {
		opts.Keep = opts.HighWater * 3 / 4
	}
	return &Cache{
		entries: make(map[string]*entry),
		opts:    opts,
		now:     time.Now,
	}
}

// SetRecorder attaches a metrics recorder.
func (c *Cache) SetRecorder(r Recorder) { c.recorder = r }

// Get returns the cached instance for an id. Stale entries read as misses
// and are dropped.
func (c *Cache) Get(id string) (registry.Instance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		c.miss()
		return registry.Instance{}, false
	}
	if c.now().Sub(e.storedAt) > c.opts.TTL {
		delete(c.entries, id)
		c.evicted("ttl")
		c.miss()
		return registry.Instance{}, false
	}

	e.lastAccess = c.now()
	e.accessCount++
	c.hit()
	return e.inst, true
}

// Put stores an instance and enforces the capacity high-water mark.
func (c *Cache) Put(id string, inst registry.Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[id] = &entry{inst: inst, storedAt: now, lastAccess: now, accessCount: 1}
	c.evictOverCapacityLocked()
}

// GetOrFetch returns the cached instance or fetches it, collapsing
// concurrent fetches for the same id into one call.
func (c *Cache) GetOrFetch(ctx context.Context, id string, fetch func(context.Context) (registry.Instance, error)) (registry.Instance, error) {
	if inst, ok := c.Get(id); ok {
		return inst, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		inst, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(id, inst)
		return inst, nil
	})
	if err != nil {
		return registry.Instance{}, err
	}
	return v.(registry.Instance), nil
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate drops one entry.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// evictOverCapacityLocked keeps only the Keep most-recently-accessed
// entries once the count exceeds the high-water mark.
func (c *Cache) evictOverCapacityLocked() {
	if len(c.entries) <= c.opts.HighWater {
		return
	}

	type keyed struct {
		id string
		at time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for id, e := range c.entries {
		all = append(all, keyed{id: id, at: e.lastAccess})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	for _, k := range all[c.opts.Keep:] {
		delete(c.entries, k.id)
		c.evicted("capacity")
	}
}

func (c *Cache) hit() {
	if c.recorder != nil {
		c.recorder.RecordCacheHit()
	}
}

func (c *Cache) miss() {
	if c.recorder != nil {
		c.recorder.RecordCacheMiss()
	}
}

func (c *Cache) evicted(reason string) {
	if c.recorder != nil {
		c.recorder.RecordCacheEviction(reason)
	}
}
