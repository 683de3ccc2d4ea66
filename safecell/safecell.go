// Package safecell implements component K: a single-processor,
// interrupt-masking reentrant cell. On real hardware this would mask
// local interrupts for the duration of the critical section so that a
// timer tick cannot reenter the scheduler mid-update; this simulated
// kernel has no interrupt controller to mask, so the cell instead
// refuses any conflicting borrow outright. Grounded on the
// rCore-tutorial original's UPIntrFreeCell (sync/up.rs), whose
// exclusive() never blocks either: on a single hart with no real
// preemption of kernel code, a second live borrow can only mean a bug,
// so both the original and this cell panic on the spot instead of
// queuing behind it. Also grounded on the teacher's pattern of a small
// sync.Mutex-embedding guard type used throughout biscuit (bucket_t,
// Threadinfo_t).
package safecell

import (
	"fmt"
	"sync"
)

// Cell wraps a value of type T so that it can only be touched while
// holding the cell's lock, via Access/a Guard.
type Cell[T any] struct {
	mu  sync.Mutex
	val T
}

// New wraps v in a fresh, unlocked Cell.
func New[T any](v T) *Cell[T] {
	return &Cell[T]{val: v}
}

// Guard is the RAII-style handle returned by Access; the caller must
// call Done exactly once to release the cell.
type Guard[T any] struct {
	c *Cell[T]
}

// Access takes the cell's lock without ever blocking the caller and
// returns a guard exposing the protected value. It panics immediately
// if the cell is already held, whether by this same goroutine
// (reentrant access) or another one: §4.10's "conflicting borrows
// panic at runtime" does not distinguish the two, since this kernel's
// single hart should never have two live borrows of the same cell at
// once in the first place.
func (c *Cell[T]) Access() *Guard[T] {
	if !c.mu.TryLock() {
		panic(fmt.Sprintf("safecell: conflicting access to %T", c.val))
	}
	return &Guard[T]{c: c}
}

// Get returns a pointer to the protected value for reading or writing
// while the guard is held.
func (g *Guard[T]) Get() *T {
	return &g.c.val
}

// Done releases the cell. It panics if already released.
func (g *Guard[T]) Done() {
	if g.c == nil {
		panic("safecell: double done on guard")
	}
	c := g.c
	g.c = nil
	c.mu.Unlock()
}
