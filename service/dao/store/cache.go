package store

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/viant/floor/service/dao"
)

// Cache is a generic dao.Service keeping entities in memory with an
// expiration; an entity the retention function pins never expires.
type Cache[K comparable, T any] struct {
	cache       *ttlcache.Cache[K, *T]
	keyOf       func(*T) K
	retentionOf func(*T) time.Duration
}

// Option configures a cache
type Option[K comparable, T any] func(c *Cache[K, T])

// WithRetention sets the function returning the entity time to live:
// ttlcache.NoTTL pins it, ttlcache.DefaultTTL applies the cache TTL.
func WithRetention[K comparable, T any](fn func(*T) time.Duration) Option[K, T] {
	return func(c *Cache[K, T]) {
		c.retentionOf = fn
	}
}

// WithOnEvicted registers a callback for entities removed after expiring
func WithOnEvicted[K comparable, T any](fn func(key K, value *T)) Option[K, T] {
	return func(c *Cache[K, T]) {
		c.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[K, *T]) {
			if reason != ttlcache.EvictionReasonExpired {
				return
			}
			fn(item.Key(), item.Value())
		})
	}
}

// New creates a cache expiring entities ttl after their last save; zero ttl
// keeps them until deleted.
func New[K comparable, T any](ttl time.Duration, keyOf func(*T) K, options ...Option[K, T]) *Cache[K, T] {
	ret := &Cache[K, T]{
		cache: ttlcache.New(
			ttlcache.WithTTL[K, *T](ttl),
			ttlcache.WithDisableTouchOnHit[K, *T](),
		),
		keyOf: keyOf,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Start runs the expiration loop until Stop is called
func (c *Cache[K, T]) Start() {
	c.cache.Start()
}

// Stop stops the expiration loop
func (c *Cache[K, T]) Stop() {
	c.cache.Stop()
}

// Save stores or overwrites an entity and restarts its expiration
func (c *Cache[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := c.keyOf(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	ttl := ttlcache.DefaultTTL
	if c.retentionOf != nil {
		ttl = c.retentionOf(v)
	}
	c.cache.Set(key, v, ttl)
	return nil
}

// Load returns an entity or dao.ErrNotFound
func (c *Cache[K, T]) Load(_ context.Context, key K) (*T, error) {
	var zero K
	if key == zero {
		return nil, dao.ErrInvalidID
	}
	item := c.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, dao.ErrNotFound
	}
	return item.Value(), nil
}

// Delete removes an entity
func (c *Cache[K, T]) Delete(_ context.Context, key K) error {
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	if !c.cache.Has(key) {
		return dao.ErrNotFound
	}
	c.cache.Delete(key)
	return nil
}

// List returns every live entity; parameters are left to wrapping services
func (c *Cache[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	items := c.cache.Items()
	out := make([]*T, 0, len(items))
	for _, item := range items {
		if item.IsExpired() {
			continue
		}
		out = append(out, item.Value())
	}
	return out, nil
}

// Len returns the number of stored entities
func (c *Cache[K, T]) Len() int {
	return c.cache.Len()
}
