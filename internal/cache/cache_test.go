package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestLRUCache(t *testing.T) {
	c := New(2, time.Minute)
	clock, advance := fakeClock(time.Unix(0, 0))
	c.now = clock

	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a") // a becomes most recent
	require.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, 2, c.Len())

	advance(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "expired entry")
}

func TestLRUCachePerEntryTTL(t *testing.T) {
	c := New(10, time.Hour)
	clock, advance := fakeClock(time.Unix(0, 0))
	c.now = clock

	c.SetWithTTL("short", "x", time.Second)
	c.SetWithTTL("forever", "y", 0)
	c.Set("default", "z")

	advance(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())

	_, ok := c.Get("forever")
	assert.True(t, ok)
	_, ok = c.Get("default")
	assert.True(t, ok)

	c.Delete("default")
	_, ok = c.Get("default")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10)

	type payload struct {
		URL string
	}

	var out payload
	found, err := m.Get(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "k", payload{URL: "https://x"}, time.Hour))
	found, err = m.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "https://x", out.URL)

	require.NoError(t, m.Delete(ctx, "k"))
	found, _ = m.Get(ctx, "k", &out)
	assert.False(t, found)

	require.NoError(t, m.Set(ctx, "gone", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, m.CleanExpired())
}

func TestNewRedisFromURL(t *testing.T) {
	_, err := NewRedisFromURL("not a url")
	assert.Error(t, err)

	r, err := NewRedisFromURL("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, r.Close())
}
