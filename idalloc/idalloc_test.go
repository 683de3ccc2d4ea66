package idalloc

import "testing"

func TestAllocatorReusesRecycledIds(t *testing.T) {
	a := New()
	id0 := a.Alloc()
	id1 := a.Alloc()
	if id0 == id1 {
		t.Fatalf("Alloc returned the same id twice: %d", id0)
	}
	a.Dealloc(id1)
	if got := a.Alloc(); got != id1 {
		t.Fatalf("expected recycled id %d, got %d", id1, got)
	}
}

func TestDeallocNeverAllocatedPanics(t *testing.T) {
	a := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on dealloc of a never-allocated id")
		}
	}()
	a.Dealloc(42)
}

func TestDeallocTwicePanics(t *testing.T) {
	a := New()
	id := a.Alloc()
	a.Dealloc(id)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double dealloc")
		}
	}()
	a.Dealloc(id)
}

func TestAllocPidSkipsIdlePid(t *testing.T) {
	// The global PID allocator starts counting above IdlePid, so AllocPid
	// never hands it out, and two successive allocations never collide.
	p0 := AllocPid()
	p1 := AllocPid()
	if p0 == IdlePid || p1 == IdlePid {
		t.Fatalf("AllocPid returned the reserved idle pid %d", IdlePid)
	}
	if p0 == p1 {
		t.Fatalf("AllocPid returned the same pid twice: %d", p0)
	}
	FreePid(p0)
	FreePid(p1)
}
