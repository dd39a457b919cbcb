package cache

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

const numShards = 16

// Sharded is a keyed cache split across fnv-hashed shards so concurrent
// writers for different keys rarely contend.
type Sharded[V any] struct {
	shards [numShards]*shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
}

type entry[V any] struct {
	value     V
	updatedAt time.Time
}

// NewSharded creates an empty sharded cache.
func NewSharded[V any]() *Sharded[V] {
	c := &Sharded[V]{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard[V]{items: make(map[string]entry[V])}
	}
	return c
}

func (c *Sharded[V]) getShard(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Update applies fn to the current value (zero value and false when absent)
// and stores the result, atomically with respect to other writers of key.
func (c *Sharded[V]) Update(key string, fn func(old V, ok bool) V) V {
	s := c.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[key]
	v := fn(old.value, ok)
	s.items[key] = entry[V]{value: v, updatedAt: time.Now()}
	return v
}

// Get retrieves the value for key.
func (c *Sharded[V]) Get(key string) (V, bool) {
	s := c.getShard(key)
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	return e.value, ok
}

// Cleanup removes entries not written for maxAge and returns how many went.
func (c *Sharded[V]) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.updatedAt.Before(cutoff) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Keys returns all keys in sorted order.
func (c *Sharded[V]) Keys() []string {
	var keys []string
	for _, s := range c.shards {
		s.mu.RLock()
		for k := range s.items {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}
