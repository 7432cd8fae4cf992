package lru

import "testing"

func TestPutGetRoundTrip(t *testing.T) {
	c := New[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) reported a hit")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the eviction candidate.
	c.Get("a")
	c.Put("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("entry %q evicted unexpectedly", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want capacity 3", c.Len())
	}
}

func TestPutExistingUpdatesAndPromotes(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted after a was promoted")
	}
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("a = %d, want updated value 10", v)
	}
}

func TestRemoveAndPurge(t *testing.T) {
	c := New[int, string](2)
	c.Put(1, "x")

	if !c.Remove(1) {
		t.Error("Remove of present key returned false")
	}
	if c.Remove(1) {
		t.Error("Remove of absent key returned true")
	}

	c.Put(2, "y")
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Len = %d after purge, want 0", c.Len())
	}
}

func TestCapacityClamp(t *testing.T) {
	c := New[int, int](0)
	c.Put(1, 1)
	c.Put(2, 2)
	if c.Len() != 1 {
		t.Errorf("Len = %d, want clamp to capacity 1", c.Len())
	}
}
