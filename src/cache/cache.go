// Package cache provides the expiring store behind the cached provider client.
//
// Entries never expire on their own: each caller decides freshness by passing
// its own expiration window to Entry.Fresh.
package cache

import (
	"strings"
	"time"

	"github.com/shaj13/libcache"
	_ "github.com/shaj13/libcache/lru"

	"cisync/src/provider"
)

// DefaultCapacity bounds each namespace when no capacity is configured.
const DefaultCapacity = 1000

// Entry is a cached value stamped with the time it was stored.
type Entry[T any] struct {
	Data     T
	CachedAt time.Time
}

// Fresh reports whether the entry is younger than expiration at now.
// A non-positive expiration means nothing is ever fresh.
func (e *Entry[T]) Fresh(now time.Time, expiration time.Duration) bool {
	if e == nil || expiration <= 0 {
		return false
	}
	return now.Sub(e.CachedAt) < expiration
}

// Namespace is one independent key space of the cache.
type Namespace[T any] struct {
	name  string
	store libcache.Cache
	now   func() time.Time
}

func newNamespace[T any](name string, capacity int, now func() time.Time) *Namespace[T] {
	return &Namespace[T]{
		name:  name,
		store: libcache.LRU.New(capacity),
		now:   now,
	}
}

// Name returns the namespace label used in metrics.
func (n *Namespace[T]) Name() string {
	return n.name
}

// Get returns the entry for key, or nil when absent.
func (n *Namespace[T]) Get(key string) *Entry[T] {
	v, ok := n.store.Load(key)
	if !ok {
		return nil
	}
	entry, ok := v.(*Entry[T])
	if !ok {
		return nil
	}
	return entry
}

// Set replaces the entry for key, stamping the current time.
func (n *Namespace[T]) Set(key string, value T) {
	n.store.Store(key, &Entry[T]{Data: value, CachedAt: n.now()})
}

// Delete removes key.
func (n *Namespace[T]) Delete(key string) {
	n.store.Delete(key)
}

// DeletePrefix removes every key starting with prefix and returns how many were removed.
func (n *Namespace[T]) DeletePrefix(prefix string) int {
	removed := 0
	for _, k := range n.store.Keys() {
		key, ok := k.(string)
		if ok && strings.HasPrefix(key, prefix) {
			n.store.Delete(key)
			removed++
		}
	}
	return removed
}

// Purge removes every key.
func (n *Namespace[T]) Purge() {
	n.store.Purge()
}

// Len returns the number of stored keys.
func (n *Namespace[T]) Len() int {
	return n.store.Len()
}

// TTLCache groups the three namespaces used by the cached client.
type TTLCache struct {
	Runs      *Namespace[[]provider.WorkflowRun]
	Tags      *Namespace[[]string]
	LatestTag *Namespace[string]
}

// Option configures a TTLCache.
type Option func(*options)

type options struct {
	capacity int
	now      func() time.Time
}

// WithCapacity bounds each namespace to capacity entries.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates an empty cache.
func New(opts ...Option) *TTLCache {
	o := options{capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache{
		Runs:      newNamespace[[]provider.WorkflowRun]("runs", o.capacity, o.now),
		Tags:      newNamespace[[]string]("tags", o.capacity, o.now),
		LatestTag: newNamespace[string]("latest_tag", o.capacity, o.now),
	}
}

// Invalidate removes key from every namespace.
func (c *TTLCache) Invalidate(key string) {
	c.Runs.Delete(key)
	c.Tags.Delete(key)
	c.LatestTag.Delete(key)
}

// InvalidateByPrefix removes every key sharing prefix across all namespaces.
func (c *TTLCache) InvalidateByPrefix(prefix string) int {
	return c.Runs.DeletePrefix(prefix) + c.Tags.DeletePrefix(prefix) + c.LatestTag.DeletePrefix(prefix)
}

// InvalidateAll empties the cache.
func (c *TTLCache) InvalidateAll() {
	c.Runs.Purge()
	c.Tags.Purge()
	c.LatestTag.Purge()
}
