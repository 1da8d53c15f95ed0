package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute, 0, 10)

	c.Set("a", 1, 0)
	x, found := c.Get("a")
	if !found {
		t.Fatal("a not found")
	}
	if x.(int) != 1 {
		t.Errorf("expected 1, got %v", x)
	}

	if _, found := c.Get("missing"); found {
		t.Error("found an item that was never set")
	}

	c.Delete("a")
	if _, found := c.Get("a"); found {
		t.Error("a found after deletion")
	}
}

func TestLRUReplacement(t *testing.T) {
	c := New(time.Minute, 0, 2)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // refresh a: b becomes the LRU victim
	c.Set("c", 3, 0)

	if _, found := c.Get("b"); found {
		t.Error("b should have been replaced")
	}
	if _, found := c.Get("a"); !found {
		t.Error("a was evicted despite being recently used")
	}
	if _, found := c.Get("c"); !found {
		t.Error("c missing right after Set")
	}
}

func TestExpiration(t *testing.T) {
	c := New(20*time.Millisecond, 0, 10)

	c.Set("short", 1, 0)
	c.Set("long", 2, time.Minute)
	c.Set("forever", 3, NoExpiration)

	time.Sleep(40 * time.Millisecond)

	if _, found := c.Get("short"); found {
		t.Error("expired item still returned")
	}
	if _, found := c.Get("long"); !found {
		t.Error("unexpired item dropped")
	}
	if _, found := c.Get("forever"); !found {
		t.Error("permanent item dropped")
	}
}

func TestCleanupLoop(t *testing.T) {
	c := New(10*time.Millisecond, 20*time.Millisecond, 10)
	defer c.Stop()

	c.Set("a", 1, 0)
	time.Sleep(60 * time.Millisecond)

	c.mu.RLock()
	_, present := c.items["a"]
	c.mu.RUnlock()
	if present {
		t.Error("expired item not removed by the cleanup loop")
	}
}
