package sched

import (
	"testing"

	"github.com/gokernel/rvos/proc"
)

func TestIdleLoopRoundRobinOrder(t *testing.T) {
	p := NewProcessor()
	a, b, c := &proc.TCB{}, &proc.TCB{}, &proc.TCB{}
	p.Enqueue(a)
	p.Enqueue(b)
	p.Enqueue(c)

	var order []*proc.TCB
	stop := make(chan struct{})
	runs := 0
	run := func(t *proc.TCB) {
		order = append(order, t)
		runs++
		if runs == 6 {
			close(stop)
			return
		}
		t.Status = proc.Ready // still runnable, goes to the back of the queue
	}
	p.IdleLoop(run, stop)

	want := []*proc.TCB{a, b, c, a, b, c}
	if len(order) != len(want) {
		t.Fatalf("ran %d times, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("run %d = thread %p, want %p (round-robin order violated)", i, order[i], want[i])
		}
	}
}

func TestIdleLoopDropsExitedThreads(t *testing.T) {
	p := NewProcessor()
	a := &proc.TCB{}
	p.Enqueue(a)

	stop := make(chan struct{})
	run := func(t *proc.TCB) {
		t.Status = proc.Zombie // exits, should not be requeued
		close(stop)
	}
	p.IdleLoop(run, stop)

	if !p.Idle() {
		t.Fatal("exited thread was left in the ready queue")
	}
}

func TestCurrentReflectsRunningThread(t *testing.T) {
	p := NewProcessor()
	a := &proc.TCB{}
	p.Enqueue(a)

	stop := make(chan struct{})
	seenCurrent := false
	run := func(t *proc.TCB) {
		if p.Current() == t {
			seenCurrent = true
		}
		close(stop)
	}
	p.IdleLoop(run, stop)

	if !seenCurrent {
		t.Fatal("Current() did not report the thread being run")
	}
	if p.Current() != nil {
		t.Fatal("Current() should be nil once IdleLoop has stopped")
	}
}
