package mem

import "testing"

func TestAllocatorUniqueness(t *testing.T) {
	a := NewAllocator(0, 8)
	seen := map[PPN]bool{}
	for i := 0; i < 8; i++ {
		h, ok := a.Alloc()
		if !ok {
			t.Fatalf("alloc %d: unexpected exhaustion", i)
		}
		if seen[h.PPN()] {
			t.Fatalf("ppn %#x handed out twice", h.PPN())
		}
		seen[h.PPN()] = true
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("alloc succeeded past the end of the range")
	}
}

func TestAllocatorRecycleIsLIFO(t *testing.T) {
	a := NewAllocator(0, 4)
	h0, _ := a.Alloc()
	h1, _ := a.Alloc()
	h0.Free()
	h1.Free()

	h2, ok := a.Alloc()
	if !ok || h2.PPN() != h1.PPN() {
		t.Fatalf("expected recycled ppn %#x, got %#x (ok=%v)", h1.PPN(), h2.PPN(), ok)
	}
}

func TestAllocatorFramesAreZeroed(t *testing.T) {
	a := NewAllocator(0, 2)
	h, _ := a.Alloc()
	for i := range h.Bytes() {
		h.Bytes()[i] = 0xff
	}
	ppn := h.PPN()
	h.Free()

	h2, ok := a.Alloc()
	if !ok || h2.PPN() != ppn {
		t.Fatalf("expected to get the just-freed frame back, got ppn %#x ok=%v", h2.PPN(), ok)
	}
	for i, b := range h2.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zeroed on reallocation: %#x", i, b)
		}
	}
}

func TestHandleDoubleFreePanics(t *testing.T) {
	a := NewAllocator(0, 1)
	h, _ := a.Alloc()
	h.Free()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	h.Free()
}

func TestFreeCountTracksAvailability(t *testing.T) {
	a := NewAllocator(0, 4)
	if got := a.Free(); got != 4 {
		t.Fatalf("Free() = %d, want 4", got)
	}
	h, _ := a.Alloc()
	if got := a.Free(); got != 3 {
		t.Fatalf("Free() after one alloc = %d, want 3", got)
	}
	h.Free()
	if got := a.Free(); got != 4 {
		t.Fatalf("Free() after giving the frame back = %d, want 4", got)
	}
}
