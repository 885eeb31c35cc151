package memory

import "testing"

func TestCacheEvictsOldestInserted(t *testing.T) {
	c := newContextCache(3)
	for _, key := range []string{"a", "b", "c"} {
		if evicted, ok := c.put(key, &MemoryContext{SessionID: key}); ok {
			t.Fatalf("unexpected eviction of %q before capacity", evicted)
		}
	}

	evicted, ok := c.put("d", &MemoryContext{SessionID: "d"})
	if !ok {
		t.Fatalf("put(d) evicted nothing, want eviction")
	}
	if evicted != "a" {
		t.Fatalf("evicted = %q, want first-inserted %q", evicted, "a")
	}
	if _, found := c.get("a"); found {
		t.Fatalf("get(a) found evicted entry")
	}
	if _, found := c.get("b"); !found {
		t.Fatalf("get(b) missing, want cached")
	}
}

func TestCacheGetDoesNotAffectEvictionOrder(t *testing.T) {
	c := newContextCache(2)
	c.put("a", &MemoryContext{})
	c.put("b", &MemoryContext{})

	// Access "a"; FIFO eviction must still remove it first.
	if _, ok := c.get("a"); !ok {
		t.Fatalf("get(a) missing")
	}

	evicted, ok := c.put("c", &MemoryContext{})
	if !ok || evicted != "a" {
		t.Fatalf("evicted = %q (ok=%v), want %q", evicted, ok, "a")
	}
}

func TestCacheReplaceKeepsInsertionPosition(t *testing.T) {
	c := newContextCache(2)
	c.put("a", &MemoryContext{ConversationID: "one"})
	c.put("b", &MemoryContext{})

	if evicted, ok := c.put("a", &MemoryContext{ConversationID: "two"}); ok {
		t.Fatalf("replace evicted %q, want none", evicted)
	}
	got, _ := c.get("a")
	if got.ConversationID != "two" {
		t.Fatalf("ConversationID = %q, want replaced value", got.ConversationID)
	}

	evicted, ok := c.put("c", &MemoryContext{})
	if !ok || evicted != "a" {
		t.Fatalf("evicted = %q (ok=%v), want oldest-inserted %q", evicted, ok, "a")
	}
}

func TestCacheLen(t *testing.T) {
	c := newContextCache(5)
	if c.len() != 0 {
		t.Fatalf("len = %d, want 0", c.len())
	}
	c.put("a", &MemoryContext{})
	c.put("b", &MemoryContext{})
	if c.len() != 2 {
		t.Fatalf("len = %d, want 2", c.len())
	}
	c.remove("a")
	if c.len() != 1 {
		t.Fatalf("len after remove = %d, want 1", c.len())
	}
}
