package sched

import (
	"testing"

	"github.com/gokernel/rvos/proc"
)

func TestTimerQueueDueOrdersByExpiry(t *testing.T) {
	q := NewTimerQueue()
	early := &proc.TCB{}
	late := &proc.TCB{}

	q.Sleep(late, 0, 100)
	q.Sleep(early, 0, 10)

	if early.Status != proc.Blocked || late.Status != proc.Blocked {
		t.Fatal("Sleep did not mark threads Blocked")
	}

	due := q.Due(10)
	if len(due) != 1 || due[0] != early {
		t.Fatalf("Due(10) = %v, want [early]", due)
	}

	due = q.Due(100)
	if len(due) != 1 || due[0] != late {
		t.Fatalf("Due(100) = %v, want [late]", due)
	}
}

func TestTimerQueueDueIsEmptyBeforeExpiry(t *testing.T) {
	q := NewTimerQueue()
	q.Sleep(&proc.TCB{}, 0, 1000)
	if due := q.Due(500); len(due) != 0 {
		t.Fatalf("Due before expiry returned %d threads, want 0", len(due))
	}
}

func TestTimerQueueDuePopsEverythingAtOnce(t *testing.T) {
	q := NewTimerQueue()
	for i := 0; i < 5; i++ {
		q.Sleep(&proc.TCB{}, 0, int64(i))
	}
	due := q.Due(4)
	if len(due) != 5 {
		t.Fatalf("Due(4) returned %d threads, want 5", len(due))
	}
	if due2 := q.Due(100); len(due2) != 0 {
		t.Fatal("Due returned already-popped entries a second time")
	}
}
