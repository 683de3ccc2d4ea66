package vm

import (
	"bytes"
	"debug/elf"
	"fmt"
	"sort"

	"github.com/gokernel/rvos/mem"
)

// AddressSpace is one MemorySet: an owned page table plus the ordered,
// non-overlapping mapped regions that back it (§3, §4.3). Every address
// space carries the trampoline page mapped at the same virtual address
// (Trampoline) across every table in the system, so that the trap
// handler's code stays reachable across the address-space switch that
// happens on trap entry/exit.
type AddressSpace struct {
	alloc   *mem.Allocator
	pt      *PageTable
	regions []*Region

	// EntryPoint and UserStackBase are populated by FromELF for process
	// address spaces; zero for NewKernel.
	EntryPoint    uint64
	UserStackBase uint64
}

// Token returns the root token identifying this address space's page
// table, suitable for storing in a TrapContext's KernelSatp or satp.
func (as *AddressSpace) Token() uint64 { return as.pt.Token() }

// Table exposes the underlying page table for packages (proc's trap-
// context access) that need to resolve a fixed-size struct's bytes
// directly rather than go through TranslatedByteBuffer's page-spanning
// path.
func (as *AddressSpace) Table() *PageTable { return as.pt }

// Translate exposes the underlying page table's VPN translation.
func (as *AddressSpace) Translate(vpn VPN) (PTE, bool) { return as.pt.Translate(vpn) }

// TranslateVA exposes the underlying page table's VA translation.
func (as *AddressSpace) TranslateVA(va uint64) (uint64, bool) { return as.pt.TranslateVA(va) }

// mapTrampoline maps the trampoline page into every address space at the
// identical virtual address Trampoline, backed by a dedicated identity
// frame shared by reference so that the trap-entry code is addressable
// both before and after the satp switch (§4.5).
func mapTrampoline(pt *PageTable, trampoline mem.PPN) {
	vpn := VPN(Trampoline >> mem.PageShift)
	pt.Map(vpn, trampoline, FlagR|FlagX)
}

// insertRegion appends r to as after checking it against every existing
// region's VPN range, panicking on overlap (the non-overlap invariant of
// §3), then maps it into the page table.
func (as *AddressSpace) insertRegion(r *Region) {
	for _, other := range as.regions {
		if r.Overlaps(other) {
			panic(fmt.Sprintf("vm: region [%#x,%#x) overlaps existing [%#x,%#x)", r.Start, r.End, other.Start, other.End))
		}
	}
	r.MapInto(as.pt, as.alloc)
	as.regions = append(as.regions, r)
}

// removeRegionContaining unmaps and drops the region covering vpn, used
// when a thread's stack/trap-context pages are torn down (§4.6's thread
// exit path). It panics if no region covers vpn.
func (as *AddressSpace) removeRegionContaining(vpn VPN) {
	for i, r := range as.regions {
		if r.Start <= vpn && vpn < r.End {
			r.UnmapFrom(as.pt)
			as.regions = append(as.regions[:i], as.regions[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("vm: no region contains vpn %#x", vpn))
}

// NewKernel builds the kernel's own address space: one Identical region
// covering the whole physical arena (so the kernel can dereference any
// physical address directly) plus the trampoline page, per §4.3's
// "kernel space" description.
func NewKernel(alloc *mem.Allocator, physStart, physEnd mem.PPN, trampoline mem.PPN) *AddressSpace {
	pt, ok := New(alloc)
	if !ok {
		panic("vm: out of memory building kernel address space")
	}
	as := &AddressSpace{alloc: alloc, pt: pt}
	mapTrampoline(pt, trampoline)
	as.insertRegion(NewIdentical(VPN(physStart), VPN(physEnd), FlagR|FlagW|FlagX))
	return as
}

// segment is an ELF PT_LOAD program header reduced to what FromELF needs.
type segment struct {
	vaddr, memsz uint64
	data         []byte
	flags        elf.ProgFlag
}

func permFromELF(f elf.ProgFlag) Flag {
	perm := FlagU
	if f&elf.PF_R != 0 {
		perm |= FlagR
	}
	if f&elf.PF_W != 0 {
		perm |= FlagW
	}
	if f&elf.PF_X != 0 {
		perm |= FlagX
	}
	return perm
}

// FromELF builds a new user address space from an ELF executable image,
// per §4.3/§4.6: one Framed region per PT_LOAD segment, a guard page,
// the initial user stack, and thread 0's trap-context page, plus the
// shared trampoline. It returns the address space, the tid-0 user stack
// top, and the entry point.
//
// There is no third-party ELF reader in the retrieved example pack for
// this domain; debug/elf is the standard library's ELF reader and is
// used here as the narrowest possible exception to the "no stdlib
// reimplementation" rule; it parses a file format, not a kernel
// subsystem, and no example repo in the pack links an alternative.
func FromELF(alloc *mem.Allocator, trampoline mem.PPN, image []byte, numTrapCxPages int) (as *AddressSpace, userStackTop uint64, entry uint64, err error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vm: parse elf: %w", err)
	}

	pt, ok := New(alloc)
	if !ok {
		return nil, 0, 0, fmt.Errorf("vm: out of memory building elf address space")
	}
	as = &AddressSpace{alloc: alloc, pt: pt}
	mapTrampoline(pt, trampoline)

	var segs []segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, 0, 0, fmt.Errorf("vm: read segment: %w", err)
		}
		segs = append(segs, segment{vaddr: prog.Vaddr, memsz: prog.Memsz, data: data, flags: prog.Flags})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].vaddr < segs[j].vaddr })

	var maxEnd uint64
	for _, s := range segs {
		startVPN, _ := VAToVPN(s.vaddr)
		endVPN, off := VAToVPN(s.vaddr + s.memsz)
		if off != 0 {
			endVPN++
		}
		r := NewFramed(startVPN, endVPN, permFromELF(s.flags))
		as.insertRegion(r)
		r.PushBytesAt(alloc, s.data)
		if end := VPNToVA(endVPN); end > maxEnd {
			maxEnd = end
		}
	}

	// A guard page separates the program break from the user stack, per
	// §4.3.
	userStackBottomVPN := VPN(maxEnd>>mem.PageShift) + 1
	userStackTopVPN := userStackBottomVPN + VPN(UserStackSize/mem.PageSize)
	as.insertRegion(NewFramed(userStackBottomVPN, userStackTopVPN, FlagR|FlagW|FlagU))
	as.UserStackBase = VPNToVA(userStackBottomVPN)
	userStackTop = VPNToVA(userStackTopVPN)

	for tid := 0; tid < numTrapCxPages; tid++ {
		base := TrapCxBottomFromTid(tid)
		vpn := VPN(base >> mem.PageShift)
		as.insertRegion(NewFramed(vpn, vpn+1, FlagR|FlagW))
	}

	as.EntryPoint = f.Entry
	return as, userStackTop, f.Entry, nil
}

// FromExistedUser clones every region of src, trap-context pages
// included, into a brand new address space; Framed regions get their
// own frames, copied byte-for-byte, for fork/clone semantics (§4.4).
// The trampoline is remapped fresh rather than copied since it is shared
// read-only code, not process state.
func FromExistedUser(alloc *mem.Allocator, trampoline mem.PPN, src *AddressSpace) *AddressSpace {
	pt, ok := New(alloc)
	if !ok {
		panic("vm: out of memory cloning address space")
	}
	as := &AddressSpace{alloc: alloc, pt: pt, EntryPoint: src.EntryPoint, UserStackBase: src.UserStackBase}
	mapTrampoline(pt, trampoline)

	for _, r := range src.regions {
		clone := &Region{Start: r.Start, End: r.End, Type: r.Type, Perm: r.Perm}
		if r.Type == Framed {
			clone.frames = map[VPN]*mem.Handle{}
		}
		as.insertRegion(clone)
		if r.Type == Framed {
			for vpn := r.Start; vpn < r.End; vpn++ {
				srcFrame, ok := r.FrameAt(vpn)
				if !ok {
					continue
				}
				dstFrame, ok := clone.FrameAt(vpn)
				if !ok {
					continue
				}
				*dstFrame.Bytes() = *srcFrame.Bytes()
			}
		}
	}
	return as
}

// InsertFramed maps a new Framed region with the given permissions into
// the address space; used for kernel stacks, and for an additional
// thread's user stack and trap-context page (§4.6).
func (as *AddressSpace) InsertFramed(start, end VPN, perm Flag) {
	as.insertRegion(NewFramed(start, end, perm))
}

// RemoveRegionAt drops and unmaps the region containing vpn. It panics
// if no region contains vpn.
func (as *AddressSpace) RemoveRegionAt(vpn VPN) {
	as.removeRegionContaining(vpn)
}

// Destroy releases every region's frames and the page table's own
// frames. Called when a process exits (§6.3).
func (as *AddressSpace) Destroy() {
	for _, r := range as.regions {
		r.UnmapFrom(as.pt)
	}
	as.regions = nil
	as.pt.Destroy()
}
