package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set[V any](c *Sharded[V], key string, v V) {
	c.Update(key, func(V, bool) V { return v })
}

func TestShardedGet(t *testing.T) {
	c := NewSharded[float64]()
	set(c, "BTCUSDT", 100)

	v, ok := c.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	_, ok = c.Get("ETHUSDT")
	assert.False(t, ok)
}

func TestShardedUpdate(t *testing.T) {
	c := NewSharded[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update("n", func(old int, _ bool) int { return old + 1 })
		}()
	}
	wg.Wait()

	v, _ := c.Get("n")
	assert.Equal(t, 50, v)

	seen := false
	c.Update("fresh", func(_ int, ok bool) int { seen = ok; return 1 })
	assert.False(t, seen)
}

func TestShardedKeys(t *testing.T) {
	c := NewSharded[string]()
	for i := 0; i < 40; i++ {
		set(c, fmt.Sprintf("K%02d", i), "v")
	}

	keys := c.Keys()
	require.Len(t, keys, 40)
	assert.Equal(t, "K00", keys[0])
	assert.Equal(t, "K39", keys[39])
}

func TestShardedCleanup(t *testing.T) {
	c := NewSharded[int]()
	set(c, "old", 1)
	time.Sleep(20 * time.Millisecond)
	set(c, "new", 2)

	removed := c.Cleanup(10 * time.Millisecond)
	assert.Equal(t, 1, removed)
	_, ok := c.Get("new")
	assert.True(t, ok)
	_, ok = c.Get("old")
	assert.False(t, ok)
	assert.Equal(t, []string{"new"}, c.Keys())
}
