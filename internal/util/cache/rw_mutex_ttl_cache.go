package cache

import (
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return e.expiresAt.Before(now)
}

// RWMutexTTLCache is a RWMutexCache whose entries expire.  Expired entries are
// invisible to readers and are dropped by Purge.
type RWMutexTTLCache[K comparable, V any] struct {
	data       *RWMutexCache[K, entry[V]]
	DefaultTTL time.Duration
}

func NewRWMutexTTLCache[K comparable, V any](defaultTTL time.Duration) *RWMutexTTLCache[K, V] {
	return &RWMutexTTLCache[K, V]{
		data:       NewRWMutexCache[K, entry[V]](),
		DefaultTTL: defaultTTL,
	}
}

func (c *RWMutexTTLCache[K, V]) Get(key K) (V, bool) {
	x, found := c.data.Get(key)
	if found && x.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return x.value, found
}

func (c *RWMutexTTLCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	c.data.Put(key, entry[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

func (c *RWMutexTTLCache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, c.DefaultTTL)
}

// GetOrPut returns the live value stored under key, or stores and returns the result of create.
// Reading an entry through GetOrPut extends its life by DefaultTTL.
func (c *RWMutexTTLCache[K, V]) GetOrPut(key K, create func() V) V {
	now := time.Now()
	if x, found := c.data.Get(key); found && !x.expired(now) {
		c.data.Put(key, entry[V]{value: x.value, expiresAt: now.Add(c.DefaultTTL)})
		return x.value
	}
	value := create()
	c.Put(key, value)
	return value
}

func (c *RWMutexTTLCache[K, V]) Delete(key K) {
	c.data.Delete(key)
}

// Purge drops the expired entries and returns how many were dropped.
func (c *RWMutexTTLCache[K, V]) Purge() int {
	now := time.Now()
	return c.data.DeleteIf(func(_ K, e entry[V]) bool {
		return e.expired(now)
	})
}

func (c *RWMutexTTLCache[K, V]) Len() int {
	return c.data.Len()
}
