package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](maxSize, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_Eviction(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1") // key2 is now least recently used
	c.Set("key4", "value4")

	if _, ok := c.Get("key2"); ok {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Set("summary:2024-01", "cached")
	if v, ok := c.Get("summary:2024-01"); !ok || v != "cached" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}

	clk.advance(2 * time.Minute)
	if _, ok := c.Get("summary:2024-01"); ok {
		t.Error("entry should have expired")
	}
	if c.Size() != 0 {
		t.Error("expired entry should be removed on access")
	}
}

func TestLRUCache_SetRefreshesExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Set("k", "v1")
	clk.advance(50 * time.Second)
	c.Set("k", "v2")
	clk.advance(50 * time.Second)

	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Errorf("Get() = %q, %v; want v2, true", v, ok)
	}
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
	c.Delete("missing")

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d", c.Size())
	}
	c.Set("c", "3")
	if _, ok := c.Get("c"); !ok {
		t.Error("cache should be usable after Purge")
	}
}

func TestManager_Sweep(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
	}
	clk.advance(2 * time.Minute)
	c.Set("fresh", "v")

	m := NewManager(c)
	if removed := m.Sweep(); removed != 3 {
		t.Errorf("Sweep() removed %d, want 3", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManager_StartStopsWithContext(t *testing.T) {
	m := NewManager(NewLRUCache[int](1, time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[int](50, time.Hour)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Size() > 50 {
		t.Errorf("Size() = %d exceeds max", c.Size())
	}
}
