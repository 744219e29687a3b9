package cache

import (
	"context"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *clock) {
	clk := &clock{t: time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Hour)
	c.Set("ttl", "x")
	c.SetUntil("short", "y", clk.t.Add(time.Minute))
	c.SetUntil("long", "z", clk.t.Add(48*time.Hour))

	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("short"); ok {
		t.Fatal("entry should expire at its own deadline")
	}
	if _, ok := c.Get("ttl"); !ok {
		t.Fatal("ttl entry should still be alive")
	}

	clk.t = clk.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("expected 2 expired entries, removed %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("cache should be empty, size %d", c.Size())
	}
}

func TestLRUPurgeAndDelete(t *testing.T) {
	c, _ := newTestCache(10, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be gone")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatal("purge should empty the cache")
	}
}

func TestManagerSweepAndRun(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", "1")
	clk.t = clk.t.Add(time.Hour)

	m := NewManager(time.Millisecond, nil)
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("sweep removed %d, want 1", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}
