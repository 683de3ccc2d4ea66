// Package sched implements component H: the round-robin ready queue and
// the dedicated idle control flow that drives context switches, per
// spec §4.7. The original's __switch is a hand-written RISC-V assembly
// routine that swaps callee-saved registers directly; this kernel has
// no such routine to port (see the implementation vehicle note at the
// top of the module), so Processor.IdleLoop instead runs each ready
// thread's next trap to completion on the single goroutine driving the
// loop, retrying a thread that blocks partway through a syscall the
// next time something re-enqueues it (see the ksync package doc for
// why this replaces literal goroutine parking). The FIFO queue /
// round-robin policy itself is grounded on the original's TaskManager
// (os/src/task/manager.rs, not retrieved verbatim but named
// consistently with its add/fetch queue semantics).
package sched

import (
	"github.com/gokernel/rvos/proc"
	"github.com/gokernel/rvos/safecell"
)

// Processor owns the single hart's ready queue and currently running
// thread. This teaching kernel models exactly one hart, so there is one
// package-level Processor rather than a per-hart array.
type Processor struct {
	cell *safecell.Cell[processorState]
}

// processorState is the Processor's mutable state, wrapped in a single
// interrupt-masking cell (component K) per §5's "all mutable kernel
// state is wrapped in K," instead of a bare sync.Mutex.
type processorState struct {
	ready   []*proc.TCB
	current *proc.TCB
}

// NewProcessor returns an idle Processor with an empty ready queue.
func NewProcessor() *Processor {
	return &Processor{cell: safecell.New(processorState{})}
}

// Global is the kernel's single-hart processor.
var Global = NewProcessor()

// Enqueue appends t to the back of the ready queue, marking it Ready.
// Matches the original's round-robin "always append to the back"
// policy (§4.7).
func (p *Processor) Enqueue(t *proc.TCB) {
	g := p.cell.Access()
	defer g.Done()
	t.Status = proc.Ready
	g.Get().ready = append(g.Get().ready, t)
}

// popNext removes and returns the thread at the front of the ready
// queue.
func (p *Processor) popNext() (*proc.TCB, bool) {
	g := p.cell.Access()
	defer g.Done()
	s := g.Get()
	if len(s.ready) == 0 {
		return nil, false
	}
	t := s.ready[0]
	s.ready = s.ready[1:]
	return t, true
}

// Current returns the thread currently occupying the hart, or nil if
// idle.
func (p *Processor) Current() *proc.TCB {
	g := p.cell.Access()
	defer g.Done()
	return g.Get().current
}

func (p *Processor) setCurrent(t *proc.TCB) {
	g := p.cell.Access()
	g.Get().current = t
	g.Done()
}

// Idle reports whether the ready queue is empty and no thread is
// running, the condition the original's run_tasks loop spins on while
// waiting for an interrupt (§4.7).
func (p *Processor) Idle() bool {
	g := p.cell.Access()
	defer g.Done()
	s := g.Get()
	return len(s.ready) == 0 && s.current == nil
}

// Run resumes t, blocks until it yields back control (by trapping out
// or exiting), and returns. It is the hook every trap-return path must
// invoke to hand execution to a thread.
type Run func(t *proc.TCB)

// IdleLoop is the dedicated idle control flow (§4.7): it repeatedly
// pops the next ready thread, runs it to its next yield point, and
// requeues it if it is still runnable afterward. IdleLoop checks stop
// before each dispatch and returns as soon as it is closed; threads
// still on the ready queue at that point stay there.
func (p *Processor) IdleLoop(run Run, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		t, ok := p.popNext()
		if !ok {
			continue
		}
		p.setCurrent(t)
		t.Status = proc.Running
		run(t)
		p.setCurrent(nil)
		if t.Status == proc.Ready {
			p.Enqueue(t)
		}
	}
}

// Yield is the syscall-driven cooperative yield (§6's sys_yield): it
// marks the calling thread Ready again so IdleLoop requeues it after
// the current Run call returns.
func Yield(t *proc.TCB) {
	t.Status = proc.Ready
}
