// Package handles implements the generation-tagged handle table that maps
// opaque player handles to live instances.
//
// A handle packs two fields into a uint64:
//
//	bits 63..32  generation of the slot (never 0)
//	bits 31..0   slot index + 1
//
// Removing an entry bumps the slot generation, so a handle that was valid
// before the removal never resolves again, even after the slot is reused.
// A slot whose generation would wrap around is retired instead of reused.
package handles

import (
	"errors"
	"math"
	"sync"
)

// Handle is an opaque, non-zero identifier for a table entry.
type Handle uint64

// Invalid is the zero handle. It never resolves.
const Invalid Handle = 0

var (
	// ErrInvalid is returned for zero, unknown, stale or removed handles.
	ErrInvalid = errors.New("handles: invalid handle")
	// ErrFull is returned when every slot index is in use or retired.
	ErrFull = errors.New("handles: table full")
	// ErrClosed is returned by Insert after Close.
	ErrClosed = errors.New("handles: table closed")
)

func makeHandle(gen uint32, index uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) split() (gen uint32, index uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return uint32(h >> 32), low - 1, true
}

// Generation returns the generation tag carried by the handle.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

type slot[T any] struct {
	gen   uint32
	value T
	live  bool
}

// Table stores values of type T behind generation-tagged handles.
//
// The mutex only guards bookkeeping; callers must not hold it while
// performing long-running work on a resolved value.
type Table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free   []uint32
	live   int
	closed bool
}

// New creates an empty table.
func New[T any]() *Table[T] {
	return &Table[T]{}
}

// Insert stores v and returns its handle. It fails with ErrClosed once
// Close was called.
func (t *Table[T]) Insert(v T) (Handle, error) {
	return t.InsertFunc(func(Handle) T { return v })
}

// InsertFunc stores the value returned by mk, which receives the handle
// the value will be stored under. mk runs with the table locked, so the
// value is complete before any other caller can resolve or drain it.
func (t *Table[T]) InsertFunc(mk func(Handle) T) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Invalid, ErrClosed
	}

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= math.MaxUint32-1 {
			return Invalid, ErrFull
		}
		index = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{gen: 1})
	}

	s := &t.slots[index]
	h := makeHandle(s.gen, index)
	s.value = mk(h)
	s.live = true
	t.live++

	return h, nil
}

// Get resolves h to its value.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Remove invalidates h and returns the value it referred to.
//
// Exactly one of several concurrent Remove calls for the same handle
// succeeds; the others get ErrInvalid.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, err := t.lookup(h)
	if err != nil {
		return zero, err
	}

	_, index, _ := h.split()
	v := s.value
	s.value = zero
	s.live = false
	t.live--

	if s.gen == math.MaxUint32 {
		// retired: reusing it would hand out generation 0
		return v, nil
	}
	s.gen++
	t.free = append(t.free, index)

	return v, nil
}

// Close removes every live entry and returns their values. Later inserts
// fail, so no entry can appear that the caller of Close did not see.
// Calling Close again returns nothing.
func (t *Table[T]) Close() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	var zero T
	out := make([]T, 0, t.live)
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		out = append(out, s.value)
		s.value = zero
		s.live = false
		if s.gen < math.MaxUint32 {
			s.gen++
			t.free = append(t.free, uint32(i))
		}
	}
	t.live = 0
	return out
}

// Handles returns the handles of all live entries.
func (t *Table[T]) Handles() []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Handle, 0, t.live)
	for i := range t.slots {
		if t.slots[i].live {
			out = append(out, makeHandle(t.slots[i].gen, uint32(i)))
		}
	}
	return out
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Table[T]) lookup(h Handle) (*slot[T], error) {
	gen, index, ok := h.split()
	if !ok || gen == 0 || int(index) >= len(t.slots) {
		return nil, ErrInvalid
	}
	s := &t.slots[index]
	if !s.live || s.gen != gen {
		return nil, ErrInvalid
	}
	return s, nil
}
