package sched

import (
	"container/heap"
	"sync"

	"github.com/gokernel/rvos/proc"
)

// There is no priority-queue library in the retrieved example pack, and
// a min-heap of (expiry, thread) pairs is exactly what container/heap
// exists to express; this is the narrow stdlib exception documented in
// DESIGN.md for this package.

type timerEntry struct {
	expiryMs int64
	thread   *proc.TCB
	index    int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].expiryMs < h[j].expiryMs }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// TimerQueue is the min-heap of (expiry_ms, thread) pairs that
// sleep(ms) is driven by: on every timer tick, Due pops every entry
// whose expiry has passed and returns its threads for the caller to
// re-enqueue onto the ready queue (§5 "Cancellation and timeouts").
type TimerQueue struct {
	mu sync.Mutex
	h  timerHeap
}

// NewTimerQueue returns an empty timer queue.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{}
}

// Sleep parks t until nowMs+durationMs has elapsed by marking it
// Blocked; the caller's re-enqueue of whatever Due returns is what
// resumes t on the ready queue.
func (q *TimerQueue) Sleep(t *proc.TCB, nowMs, durationMs int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, &timerEntry{expiryMs: nowMs + durationMs, thread: t})
	t.Status = proc.Blocked
}

// Due pops and returns every thread whose expiry is <= nowMs.
func (q *TimerQueue) Due(nowMs int64) []*proc.TCB {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*proc.TCB
	for q.h.Len() > 0 && q.h[0].expiryMs <= nowMs {
		e := heap.Pop(&q.h).(*timerEntry)
		due = append(due, e.thread)
	}
	return due
}
