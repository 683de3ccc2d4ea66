package vm

import (
	"testing"

	"github.com/gokernel/rvos/mem"
)

func TestMapTranslateRoundTrip(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	pt, ok := New(alloc)
	if !ok {
		t.Fatal("New: out of memory")
	}

	frame, ok := alloc.Alloc()
	if !ok {
		t.Fatal("alloc data frame: out of memory")
	}

	vpn := VPN(0x1234)
	pt.Map(vpn, frame.PPN(), FlagR|FlagW)

	pte, ok := pt.Translate(vpn)
	if !ok {
		t.Fatal("Translate: not found after Map")
	}
	if pte.PPN() != frame.PPN() {
		t.Fatalf("Translate PPN = %#x, want %#x", pte.PPN(), frame.PPN())
	}
	if pte.Flags()&(FlagR|FlagW) != FlagR|FlagW {
		t.Fatalf("Translate flags = %#x, want R|W set", pte.Flags())
	}
	if !pte.Valid() {
		t.Fatal("mapped pte reports invalid")
	}
}

func TestTranslateVAIncludesOffset(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	pt, _ := New(alloc)
	frame, _ := alloc.Alloc()

	vpn := VPN(7)
	pt.Map(vpn, frame.PPN(), FlagR)

	va := VPNToVA(vpn) + 0x42
	pa, ok := pt.TranslateVA(va)
	if !ok {
		t.Fatal("TranslateVA: not found")
	}
	if want := frame.PPN().Addr() + 0x42; pa != want {
		t.Fatalf("TranslateVA = %#x, want %#x", pa, want)
	}
}

func TestUnmapThenTranslateFails(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	pt, _ := New(alloc)
	frame, _ := alloc.Alloc()

	vpn := VPN(3)
	pt.Map(vpn, frame.PPN(), FlagR)
	pt.Unmap(vpn)

	if _, ok := pt.Translate(vpn); ok {
		t.Fatal("Translate succeeded after Unmap")
	}
}

func TestMapAlreadyMappedPanics(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	pt, _ := New(alloc)
	frame, _ := alloc.Alloc()

	pt.Map(VPN(1), frame.PPN(), FlagR)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic mapping an already-mapped vpn")
		}
	}()
	pt.Map(VPN(1), frame.PPN(), FlagR)
}

func TestDestroyFreesOwnedFrames(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	before := alloc.Free()

	pt, _ := New(alloc)
	// Map a few VPNs spread across different level-2/level-1 subtrees so
	// Destroy must walk back more than one interior frame.
	vpns := []VPN{0, 1 << 9, 1 << 18}
	for _, vpn := range vpns {
		frame, ok := alloc.Alloc()
		if !ok {
			t.Fatal("alloc: out of memory")
		}
		pt.Map(vpn, frame.PPN(), FlagR)
	}
	pt.Destroy()

	// The leaf data frames were allocated by the test and are not owned
	// by the table, so exactly those stay allocated after Destroy.
	if after := alloc.Free(); after != before-len(vpns) {
		t.Fatalf("Destroy leaked frames: free count %d before, %d after, want %d", before, after, before-len(vpns))
	}
}

func TestFromTokenIsForeignAndOwnsNothing(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	pt, _ := New(alloc)
	token := pt.Token()

	before := alloc.Free()
	view := FromToken(alloc, token)
	view.Destroy() // must be a no-op
	if after := alloc.Free(); after != before {
		t.Fatalf("Destroy on a FromToken view freed frames it doesn't own")
	}

	frame, _ := alloc.Alloc()
	pt.Map(VPN(5), frame.PPN(), FlagR)
	if pte, ok := view.Translate(VPN(5)); !ok || pte.PPN() != frame.PPN() {
		t.Fatal("FromToken view does not see mappings made through the original table")
	}
}
