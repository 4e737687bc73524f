package feed

import (
	"fmt"
	"testing"
)

type note struct {
	ID   string
	Body string
}

func (n note) FeedID() string { return n.ID }

func TestBoundedOldestFirstEvictsHead(t *testing.T) {
	buf := New[note](3, OldestFirst)
	for i := 1; i <= 5; i++ {
		if !buf.Insert(note{ID: fmt.Sprintf("n%d", i)}) {
			t.Fatalf("insert n%d rejected", i)
		}
	}
	if buf.Len() != 3 {
		t.Fatalf("expected length 3, got %d", buf.Len())
	}
	entries := buf.Snapshot()
	want := []string{"n3", "n4", "n5"}
	for i, id := range want {
		if entries[i].ID != id {
			t.Fatalf("entry %d: expected %s, got %s", i, id, entries[i].ID)
		}
	}
	if buf.Contains("n1") || buf.Contains("n2") {
		t.Fatalf("evicted entries still reported as retained")
	}
}

func TestBoundedNewestFirstEvictsTail(t *testing.T) {
	buf := New[note](3, NewestFirst)
	for i := 1; i <= 5; i++ {
		buf.Insert(note{ID: fmt.Sprintf("n%d", i)})
	}
	entries := buf.Snapshot()
	want := []string{"n5", "n4", "n3"}
	for i, id := range want {
		if entries[i].ID != id {
			t.Fatalf("entry %d: expected %s, got %s", i, id, entries[i].ID)
		}
	}
}

func TestBoundedRejectsDuplicateIDs(t *testing.T) {
	buf := New[note](10, OldestFirst)
	if !buf.Insert(note{ID: "dup", Body: "first"}) {
		t.Fatalf("first insert rejected")
	}
	if buf.Insert(note{ID: "dup", Body: "second"}) {
		t.Fatalf("duplicate insert accepted")
	}
	if buf.Len() != 1 {
		t.Fatalf("expected single entry, got %d", buf.Len())
	}
	entry, ok := buf.Find("dup")
	if !ok || entry.Body != "first" {
		t.Fatalf("expected original entry to survive, got %+v ok=%v", entry, ok)
	}
}

func TestBoundedDuplicateAllowedAfterEviction(t *testing.T) {
	buf := New[note](2, OldestFirst)
	buf.Insert(note{ID: "a"})
	buf.Insert(note{ID: "b"})
	buf.Insert(note{ID: "c"})
	if buf.Contains("a") {
		t.Fatalf("expected a to be evicted")
	}
	if !buf.Insert(note{ID: "a"}) {
		t.Fatalf("re-insert of evicted id rejected")
	}
}

func TestBoundedMutate(t *testing.T) {
	buf := New[note](4, NewestFirst)
	buf.Insert(note{ID: "x", Body: "old"})
	ok := buf.Mutate("x", func(n *note) { n.Body = "new" })
	if !ok {
		t.Fatalf("mutate failed to find entry")
	}
	entry, _ := buf.Find("x")
	if entry.Body != "new" {
		t.Fatalf("expected mutated body, got %q", entry.Body)
	}
	if buf.Mutate("missing", func(n *note) {}) {
		t.Fatalf("mutate reported success for unknown id")
	}
}

func TestBoundedClear(t *testing.T) {
	buf := New[note](4, OldestFirst)
	buf.Insert(note{ID: "a"})
	buf.Insert(note{ID: "b"})
	buf.Clear()
	if buf.Len() != 0 {
		t.Fatalf("expected empty feed, got %d entries", buf.Len())
	}
	if !buf.Insert(note{ID: "a"}) {
		t.Fatalf("insert after clear rejected")
	}
}

func TestBoundedZeroCapacityKeepsNothing(t *testing.T) {
	buf := New[note](0, OldestFirst)
	if buf.Insert(note{ID: "a"}) {
		t.Fatalf("zero-capacity feed accepted an entry")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty feed")
	}
}
