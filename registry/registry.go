// Package registry provides a stable-handle slot table for tracking
// live entries under a serialized control path.
//
// Each entry is addressed by a [Handle] carrying the slot index and a
// generation counter. Erasing an entry bumps the slot's generation, so
// a handle held by an asynchronous collaborator (a transfer worker
// delivering an event) can never resolve to a newer, unrelated entry
// that reuses the same slot. Resolution of a stale handle simply fails.
package registry

import "fmt"

// Handle identifies one live table entry. The zero Handle is Nil and
// never resolves. Handles remain valid until the entry is erased;
// afterwards every lookup with the old handle reports not-found.
type Handle struct {
	index uint32
	gen   uint32
}

// Nil is the zero-value Handle. It never resolves.
var Nil Handle

// IsNil reports whether the handle is the zero value.
func (h Handle) IsNil() bool { return h.gen == 0 }

// String returns a compact "index@generation" form for logging.
func (h Handle) String() string {
	if h.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.index, h.gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Table is a slot arena with generation-checked handles. Slots are
// reused after erasure; generations make stale handles unresolvable.
//
// Table is not safe for concurrent use. The coordinator serializes all
// mutations and lookups on a single control path.
type Table[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

// Create inserts a value and returns its handle.
func (t *Table[T]) Create(v T) Handle {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]

		s := &t.slots[idx]
		s.value = v
		s.live = true
		t.count++
		return Handle{index: idx, gen: s.gen}
	}

	// Generations start at 1 so the zero Handle never resolves.
	t.slots = append(t.slots, slot[T]{value: v, gen: 1, live: true})
	t.count++
	return Handle{index: uint32(len(t.slots) - 1), gen: 1}
}

// Get resolves a handle. Returns false for Nil, erased, or foreign
// handles.
func (t *Table[T]) Get(h Handle) (T, bool) {
	var zero T
	if h.IsNil() || int(h.index) >= len(t.slots) {
		return zero, false
	}
	s := &t.slots[h.index]
	if !s.live || s.gen != h.gen {
		return zero, false
	}
	return s.value, true
}

// Erase removes the entry for h and invalidates the handle. Returns
// false if the handle does not resolve.
func (t *Table[T]) Erase(h Handle) bool {
	if h.IsNil() || int(h.index) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.index]
	if !s.live || s.gen != h.gen {
		return false
	}

	var zero T
	s.value = zero
	s.live = false
	s.gen++ // invalidate outstanding handles immediately
	t.free = append(t.free, h.index)
	t.count--
	return true
}

// ForEach calls fn for every live entry. fn must not mutate the table.
func (t *Table[T]) ForEach(fn func(Handle, T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.live {
			fn(Handle{index: uint32(i), gen: s.gen}, s.value)
		}
	}
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int { return t.count }

// IsEmpty reports whether the table has no live entries.
func (t *Table[T]) IsEmpty() bool { return t.count == 0 }
