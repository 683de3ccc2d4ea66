package vm

import (
	"fmt"

	"github.com/gokernel/rvos/mem"
)

// MapType distinguishes identity-mapped kernel regions from framed
// (dynamically backed) regions, per §3.
type MapType int

const (
	// Identical regions map VPN == PPN, used for kernel identity maps.
	Identical MapType = iota
	// Framed regions allocate a fresh frame per page.
	Framed
)

// Region is a half-open VPN range, a MapType, and a permission set
// (§3 "Mapped region"). A Framed region owns the frames backing every
// page in its range.
type Region struct {
	Start, End VPN // [Start, End)
	Type       MapType
	Perm       Flag // subset of R|W|X|U

	frames map[VPN]*mem.Handle // only populated for Framed regions
}

// NewIdentical creates an identity-mapped region over [start, end).
func NewIdentical(start, end VPN, perm Flag) *Region {
	return &Region{Start: start, End: end, Type: Identical, Perm: perm}
}

// NewFramed creates an empty framed region over [start, end); frames are
// allocated lazily as the region is mapped into a page table.
func NewFramed(start, end VPN, perm Flag) *Region {
	return &Region{Start: start, End: end, Type: Framed, Perm: perm, frames: map[VPN]*mem.Handle{}}
}

// Overlaps reports whether this region's VPN range intersects other's.
func (r *Region) Overlaps(other *Region) bool {
	return r.Start < other.End && other.Start < r.End
}

// MapInto installs every page of the region into pt, allocating frames
// for Framed regions as it goes.
func (r *Region) MapInto(pt *PageTable, alloc *mem.Allocator) {
	for vpn := r.Start; vpn < r.End; vpn++ {
		switch r.Type {
		case Identical:
			pt.Map(vpn, mem.PPN(vpn), r.Perm)
		case Framed:
			h, ok := alloc.Alloc()
			if !ok {
				panic("vm: out of memory mapping framed region")
			}
			r.frames[vpn] = h
			pt.Map(vpn, h.PPN(), r.Perm)
		default:
			panic(fmt.Sprintf("vm: unknown map type %v", r.Type))
		}
	}
}

// UnmapFrom removes every page of the region from pt and frees any
// frames the region owned.
func (r *Region) UnmapFrom(pt *PageTable) {
	for vpn := r.Start; vpn < r.End; vpn++ {
		pt.Unmap(vpn)
		if h, ok := r.frames[vpn]; ok {
			h.Free()
			delete(r.frames, vpn)
		}
	}
}

// FrameAt returns the frame backing vpn within a Framed region, if any.
func (r *Region) FrameAt(vpn VPN) (*mem.Handle, bool) {
	h, ok := r.frames[vpn]
	return h, ok
}

// PushBytesAt copies data into the region starting at vpn's offset zero,
// spilling across consecutive pages as needed. Used by the ELF loader to
// populate a segment's file-backed bytes; bytes beyond len(data) within
// the region are left zero (frames are always zeroed at allocation, per
// §4.1).
func (r *Region) PushBytesAt(alloc *mem.Allocator, data []uint8) {
	vpn := r.Start
	for len(data) > 0 {
		h, ok := r.frames[vpn]
		if !ok {
			panic("vm: PushBytesAt on unmapped page")
		}
		n := copy(h.Bytes()[:], data)
		data = data[n:]
		vpn++
	}
}
