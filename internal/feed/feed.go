package feed

// Ordering controls which end of the buffer receives new entries and which
// end is trimmed when the buffer exceeds its capacity. Either way the most
// recently inserted entries survive eviction.
type Ordering int

const (
	// OldestFirst appends at the tail and evicts from the head.
	OldestFirst Ordering = iota
	// NewestFirst prepends at the head and evicts from the tail.
	NewestFirst
)

// Entry is implemented by anything stored in a bounded feed. IDs are used
// for duplicate suppression because the transport may redeliver the same
// broadcast.
type Entry interface {
	FeedID() string
}

// Bounded is an order-preserving collection capped at a fixed number of
// entries with FIFO eviction. The zero value is not usable; construct with
// New.
type Bounded[T Entry] struct {
	entries  []T
	capacity int
	ordering Ordering
	ids      map[string]struct{}
}

// New constructs a bounded feed. A capacity of zero or below keeps nothing.
func New[T Entry](capacity int, ordering Ordering) *Bounded[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Bounded[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
		ordering: ordering,
		ids:      make(map[string]struct{}, capacity),
	}
}

// Contains reports whether an entry with the given id is retained.
func (b *Bounded[T]) Contains(id string) bool {
	if b == nil || id == "" {
		return false
	}
	_, ok := b.ids[id]
	return ok
}

// Insert adds the entry and trims the feed back to capacity. It returns
// false without mutating the feed when an entry with the same id is already
// present.
func (b *Bounded[T]) Insert(entry T) bool {
	if b == nil {
		return false
	}
	id := entry.FeedID()
	if id != "" {
		if _, dup := b.ids[id]; dup {
			return false
		}
	}
	if b.capacity == 0 {
		return false
	}

	switch b.ordering {
	case NewestFirst:
		b.entries = append(b.entries, entry)
		copy(b.entries[1:], b.entries)
		b.entries[0] = entry
		if len(b.entries) > b.capacity {
			evicted := b.entries[len(b.entries)-1]
			b.entries = b.entries[:len(b.entries)-1]
			delete(b.ids, evicted.FeedID())
		}
	default:
		b.entries = append(b.entries, entry)
		if len(b.entries) > b.capacity {
			evicted := b.entries[0]
			copy(b.entries, b.entries[1:])
			b.entries = b.entries[:len(b.entries)-1]
			delete(b.ids, evicted.FeedID())
		}
	}

	if id != "" {
		b.ids[id] = struct{}{}
	}
	return true
}

// Len reports the number of retained entries.
func (b *Bounded[T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Snapshot returns a copy of the retained entries in feed order.
func (b *Bounded[T]) Snapshot() []T {
	if b == nil || len(b.entries) == 0 {
		return nil
	}
	out := make([]T, len(b.entries))
	copy(out, b.entries)
	return out
}

// Find returns the retained entry with the given id.
func (b *Bounded[T]) Find(id string) (T, bool) {
	var zero T
	if b == nil || id == "" {
		return zero, false
	}
	if _, ok := b.ids[id]; !ok {
		return zero, false
	}
	for _, entry := range b.entries {
		if entry.FeedID() == id {
			return entry, true
		}
	}
	return zero, false
}

// Mutate applies fn to the retained entry with the given id. It reports
// whether the entry was found.
func (b *Bounded[T]) Mutate(id string, fn func(*T)) bool {
	if b == nil || id == "" || fn == nil {
		return false
	}
	if _, ok := b.ids[id]; !ok {
		return false
	}
	for i := range b.entries {
		if b.entries[i].FeedID() == id {
			fn(&b.entries[i])
			return true
		}
	}
	return false
}

// Clear drops every retained entry while keeping the configured capacity.
func (b *Bounded[T]) Clear() {
	if b == nil {
		return
	}
	b.entries = b.entries[:0]
	for id := range b.ids {
		delete(b.ids, id)
	}
}
