package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "a" was just read so "b" is the least recently used entry.
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.SetWithTTL("short", 1, 20*time.Millisecond)
	c.Set("long", 2)

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Fatalf("expected short to be expired")
	}
	if v, ok := c.Get("long"); !ok || v != 2 {
		t.Fatalf("Get(long) = %d, %v", v, ok)
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.SetWithTTL("a", 1, 10*time.Millisecond)
	c.SetWithTTL("b", 2, 10*time.Millisecond)
	c.Set("c", 3)

	time.Sleep(30 * time.Millisecond)

	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("spending:u1:month", 1)
	c.Set("spending:u1:category", 2)
	c.Set("spending:u10:month", 3)
	c.Set("budgets:u1:", 4)

	if n := c.DeletePrefix("spending:u1:"); n != 2 {
		t.Fatalf("DeletePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("spending:u10:month"); !ok {
		t.Fatalf("prefix must not match a different user")
	}
	if _, ok := c.Get("budgets:u1:"); !ok {
		t.Fatalf("prefix must not match a different resource")
	}
}

func TestManager_SweepAndStop(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.SetWithTTL("a", 1, 5*time.Millisecond)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(10 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if c.Size() != 0 {
		t.Fatalf("expected periodic sweep to remove expired entry")
	}
}
