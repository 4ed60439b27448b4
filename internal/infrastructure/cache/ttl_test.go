package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTTLCache_SetGet_NoTTL(t *testing.T) {
	c := NewTTLCache[string, int](nil)
	c.Set("a", 1, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Expiry("a")
	assert.True(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[string, string](clock.Now)

	c.Set("k", "v", time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	exp, ok := c.Expiry("k")
	assert.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Second), exp)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired entry is a miss")
	assert.Empty(t, c.Keys())
	assert.Equal(t, 0, c.Len())

	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 0, c.PurgeExpired())
}

func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache[int, int](nil)
	c.Set(1, 10, 0)
	c.Set(2, 20, 0)
	c.Delete(1)

	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.ElementsMatch(t, []int{2}, c.Keys())
}

func TestTTLCache_Concurrent(t *testing.T) {
	c := NewTTLCache[int, int](nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			for j := range 100 {
				c.Set(i, j, time.Minute)
				c.Get(i)
				c.Len()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}
