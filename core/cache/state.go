// Package cache holds the memo tables the post-processor uses to avoid
// re-emitting modal output: a typed StateCache for arbitrary "last written"
// values and a CycleCache per canned cycle.
package cache

import (
	"maps"
	"slices"
)

// StateCache maps string keys to the last value written under them. Values
// keep their dynamic type; reading a key back with a different type behaves
// as if the key were absent. There is no eviction.
type StateCache struct {
	entries map[string]any
}

// NewStateCache returns an empty cache.
func NewStateCache() *StateCache {
	return &StateCache{entries: make(map[string]any)}
}

// HasChanged reports whether key is absent, holds a value of another type,
// or holds a value different from v.
func HasChanged[T comparable](c *StateCache, key string, v T) bool {
	old, ok := c.entries[key]
	if !ok {
		return true
	}
	typed, ok := old.(T)
	return !ok || typed != v
}

// Get returns the value stored under key, or def when the key is absent or
// holds another type.
func Get[T any](c *StateCache, key string, def T) T {
	if v, ok := c.entries[key].(T); ok {
		return v
	}
	return def
}

// Lookup returns the value stored under key and whether it exists with type T.
func Lookup[T any](c *StateCache, key string) (T, bool) {
	v, ok := c.entries[key].(T)
	return v, ok
}

// GetOrSet returns the value stored under key. When the key is absent or
// holds another type, def is stored and returned.
func GetOrSet[T any](c *StateCache, key string, def T) T {
	if v, ok := c.entries[key].(T); ok {
		return v
	}
	c.entries[key] = def
	return def
}

// Update stores v under key and reports whether that changed the cache.
func Update[T comparable](c *StateCache, key string, v T) bool {
	changed := HasChanged(c, key, v)
	c.entries[key] = v
	return changed
}

// Set stores v under key unconditionally.
func (c *StateCache) Set(key string, v any) {
	c.entries[key] = v
}

// SetInitial seeds key with v, replacing any earlier value. Use GetOrSet to
// store a value only when key is absent.
func (c *StateCache) SetInitial(key string, v any) {
	c.entries[key] = v
}

// Contains reports whether key holds any value.
func (c *StateCache) Contains(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Remove deletes key.
func (c *StateCache) Remove(key string) {
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *StateCache) Clear() {
	clear(c.entries)
}

// Len returns the number of entries.
func (c *StateCache) Len() int { return len(c.entries) }

// Keys returns the stored keys in sorted order.
func (c *StateCache) Keys() []string {
	return slices.Sorted(maps.Keys(c.entries))
}
