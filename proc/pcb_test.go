package proc

import "testing"

func TestAddChildReapOnlyZombies(t *testing.T) {
	parent := NewPCB(nil)
	child := NewPCB(nil)
	parent.AddChild(child)

	if _, ok := parent.Reap(-1); ok {
		t.Fatal("Reap succeeded before the child exited")
	}

	child.MarkZombie(7)
	code, ok := parent.Reap(-1)
	if !ok || code != 7 {
		t.Fatalf("Reap after exit = (%d, %v), want (7, true)", code, ok)
	}
	if _, ok := parent.Reap(-1); ok {
		t.Fatal("Reap succeeded twice for the same child")
	}
}

func TestMarkZombieReparentsOrphansToInit(t *testing.T) {
	init := NewPCB(nil)
	// Force this PCB to occupy the well-known init pid for the duration
	// of the test, since InitPid is a package constant, not a parameter.
	init.Pid = InitPid
	pidTable.Set(InitPid, init)
	defer pidTable.Del(InitPid)

	parent := NewPCB(nil)
	orphan := NewPCB(nil)
	parent.AddChild(orphan)

	parent.MarkZombie(0)

	found := false
	for _, c := range init.Children {
		if c == orphan {
			found = true
		}
	}
	if !found {
		t.Fatal("orphaned child was not reparented to init")
	}
}

func TestAllocTidIsUniquePerProcess(t *testing.T) {
	p := NewPCB(nil)
	t0 := p.AllocTid()
	t1 := p.AllocTid()
	if t0 == t1 {
		t.Fatalf("AllocTid returned the same tid twice: %d", t0)
	}
	p.DeallocTid(t1)
	if got := p.AllocTid(); got != t1 {
		t.Fatalf("expected recycled tid %d, got %d", t1, got)
	}
}
