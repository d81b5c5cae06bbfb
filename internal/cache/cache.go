// Package cache provides a bounded in-memory cache for position analyses.
package cache

import (
	"sync"
	"sync/atomic"
)

const numShards = 64

// Cache is a sharded FIFO cache keyed by string. Sharding on a hash of the
// key keeps lock contention low when many requests look up positions at the
// same time. A Cache with capacity 0 stores nothing.
type Cache[V any] struct {
	shards      [numShards]*shard[V]
	maxPerShard int
	hits        uint64
	misses      uint64
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	order []string // FIFO order for eviction
}

// New creates a cache holding about maxEntries values.
func New[V any](maxEntries int) *Cache[V] {
	maxPerShard := 0
	if maxEntries > 0 {
		maxPerShard = (maxEntries + numShards - 1) / numShards
	}

	c := &Cache[V]{maxPerShard: maxPerShard}
	for i := range c.shards {
		c.shards[i] = &shard[V]{
			items: make(map[string]V),
		}
	}
	return c
}

func (c *Cache[V]) shardFor(key string) *shard[V] {
	return c.shards[fnvHash(key)%numShards]
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	if c == nil || c.maxPerShard == 0 {
		var zero V
		return zero, false
	}
	s := c.shardFor(key)

	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()

	if ok {
		atomic.AddUint64(&c.hits, 1)
	} else {
		atomic.AddUint64(&c.misses, 1)
	}
	return v, ok
}

// Put adds or updates a value, evicting the oldest entries of its shard
// when the shard is full.
func (c *Cache[V]) Put(key string, v V) {
	if c == nil || c.maxPerShard == 0 {
		return
	}
	s := c.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; exists {
		s.items[key] = v
		return
	}

	for len(s.items) >= c.maxPerShard && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}

	s.items[key] = v
	s.order = append(s.order, key)
}

// Stats holds cache counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
}

// Stats returns cache statistics.
func (c *Cache[V]) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	st := Stats{
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
		Capacity: c.maxPerShard * numShards,
	}
	for _, s := range c.shards {
		s.mu.RLock()
		st.Entries += len(s.items)
		s.mu.RUnlock()
	}
	return st
}

// fnvHash computes the FNV-1a hash of s.
func fnvHash(s string) uint64 {
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return h
}
