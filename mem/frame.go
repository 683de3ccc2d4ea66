// Package mem implements the physical frame allocator (component A) and
// the physical-memory arena backing every page frame in the simulated
// kernel, adapted from the teacher's mem package (Physmem_t's bump +
// recycle-list allocation strategy), simplified to a single hart: no
// per-CPU free lists and no page-table reference counting, since those
// exist in the teacher only to support SMP and copy-on-write, both out
// of scope per the specification's Non-goals.
package mem

import (
	"fmt"

	"github.com/gokernel/rvos/caller"
	"github.com/gokernel/rvos/safecell"
)

// PageShift is the base-2 exponent of the page size.
const PageShift = 12

// PageSize is the size of a single page frame in bytes.
const PageSize = 1 << PageShift

// PPN is a 44-bit physical page number.
type PPN uint64

// Addr returns the byte address of the start of the frame.
func (p PPN) Addr() uint64 { return uint64(p) << PageShift }

// Frame is the byte content of one physical page.
type Frame = [PageSize]byte

// Allocator hands out and recycles 4 KiB physical page frames over the
// range [start, end). It maintains a monotonically advancing bump cursor
// and a LIFO recycle stack, exactly as the spec (§4.1) and the teacher's
// Physmem_t describe.
type Allocator struct {
	start PPN
	end   PPN
	cell  *safecell.Cell[allocState]
}

// allocState is the Allocator's mutable state, wrapped in a single
// interrupt-masking cell (component K) rather than a bare sync.Mutex,
// per §5's "all mutable kernel state is wrapped in K."
type allocState struct {
	cursor   PPN      // next never-yet-handed-out ppn
	recycled []PPN    // LIFO stack of freed ppns
	onStack  []bool   // onStack[ppn-start] tracks stack membership
	arena    []*Frame // backing storage, arena[ppn-start]
}

// NewAllocator constructs an Allocator managing frames [start, end).
func NewAllocator(start, end PPN) *Allocator {
	if end <= start {
		panic("mem: empty frame range")
	}
	n := int(end - start)
	return &Allocator{
		start: start,
		end:   end,
		cell: safecell.New(allocState{
			cursor:  start,
			onStack: make([]bool, n),
			arena:   make([]*Frame, n),
		}),
	}
}

// Handle is an RAII-style owner of exactly one physical frame. Go has no
// destructors, so unlike the teacher's Rust-derived Drop semantics the
// caller must explicitly call Free when the frame is no longer needed;
// Free is idempotent-unsafe by design (a double Free is a programmer
// error and panics, matching §7) so that bugs surface immediately rather
// than silently double-allocating the frame later.
type Handle struct {
	alloc *Allocator
	ppn   PPN
	freed bool
}

// PPN returns the physical page number owned by this handle.
func (h *Handle) PPN() PPN { return h.ppn }

// Bytes returns the frame's backing storage for reading or writing.
func (h *Handle) Bytes() *Frame {
	if h.freed {
		panic("mem: use of freed frame handle")
	}
	return h.alloc.frame(h.ppn)
}

// Free returns the frame to its allocator. It panics if the handle was
// already freed.
func (h *Handle) Free() {
	if h.freed {
		caller.ReportOnce(fmt.Sprintf("double free of frame %#x", h.ppn))
		panic("mem: double free of frame handle")
	}
	h.freed = true
	h.alloc.dealloc(h.ppn)
}

// FrameAt returns the backing storage for an already-allocated ppn. It
// panics if the frame was never allocated, e.g. a stale or invalid
// token/PTE.
func (a *Allocator) FrameAt(p PPN) *Frame {
	return a.frame(p)
}

func (a *Allocator) frame(p PPN) *Frame {
	g := a.cell.Access()
	defer g.Done()
	idx := int(p - a.start)
	f := g.Get().arena[idx]
	if f == nil {
		panic("mem: access to unbacked frame")
	}
	return f
}

// Alloc hands out one zero-filled frame, preferring the top of the
// recycle stack over advancing the bump cursor (§4.1). It returns false
// if both are exhausted ("out of memory").
func (a *Allocator) Alloc() (*Handle, bool) {
	g := a.cell.Access()
	defer g.Done()
	s := g.Get()

	var ppn PPN
	if n := len(s.recycled); n > 0 {
		ppn = s.recycled[n-1]
		s.recycled = s.recycled[:n-1]
		s.onStack[ppn-a.start] = false
	} else if s.cursor < a.end {
		ppn = s.cursor
		s.cursor++
	} else {
		return nil, false
	}

	idx := int(ppn - a.start)
	if s.arena[idx] == nil {
		s.arena[idx] = &Frame{}
	} else {
		*s.arena[idx] = Frame{}
	}
	return &Handle{alloc: a, ppn: ppn}, true
}

func (a *Allocator) dealloc(ppn PPN) {
	g := a.cell.Access()
	defer g.Done()
	s := g.Get()
	if ppn < a.start || ppn >= s.cursor {
		panic(fmt.Sprintf("mem: dealloc of unallocated ppn %#x", ppn))
	}
	idx := ppn - a.start
	if s.onStack[idx] {
		caller.ReportOnce(fmt.Sprintf("double dealloc of ppn %#x", ppn))
		panic(fmt.Sprintf("mem: double dealloc of ppn %#x", ppn))
	}
	s.onStack[idx] = true
	s.recycled = append(s.recycled, ppn)
}

// Free reports the number of frames immediately available without
// growing the arena (recycled frames plus remaining bump-cursor room).
func (a *Allocator) Free() int {
	g := a.cell.Access()
	defer g.Done()
	return len(g.Get().recycled) + int(a.end-g.Get().cursor)
}
