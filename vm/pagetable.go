// Package vm implements the three-level page-table engine (component B),
// per-address-space memory sets (component C), and cross-space data
// transfer (component D), adapted from the teacher's vm package
// (biscuit/src/vm/as.go, userbuf.go) and mem package's bit-shift VPN
// decomposition helpers (biscuit/src/mem/dmap.go: shl/pgbits), retargeted
// from the teacher's x86-64 4-level recursive-mapping scheme to the
// Sv39-like 3-level scheme this specification describes.
package vm

import (
	"fmt"

	"github.com/gokernel/rvos/mem"
)

// VPN is a 27-bit virtual page number.
type VPN uint64

// Flag is a page-table-entry permission/status bit.
type Flag uint64

// PTE flag bits, matching the Sv39 layout in §3: reserved(10) | PPN(44) |
// RSW(2) | D | A | G | U | X | W | R | V.
const (
	FlagV Flag = 1 << 0 // valid
	FlagR Flag = 1 << 1 // readable
	FlagW Flag = 1 << 2 // writable
	FlagX Flag = 1 << 3 // executable
	FlagU Flag = 1 << 4 // user-accessible
	FlagG Flag = 1 << 5 // global
	FlagA Flag = 1 << 6 // accessed
	FlagD Flag = 1 << 7 // dirty
)

const ppnShift = 10
const ppnMask = (uint64(1)<<44 - 1) << ppnShift
const flagMask = uint64(1)<<10 - 1

// PTE is a single 64-bit page-table entry.
type PTE uint64

func mkPTE(ppn mem.PPN, f Flag) PTE {
	return PTE(uint64(ppn)<<ppnShift | uint64(f))
}

// PPN extracts the physical page number from the entry.
func (e PTE) PPN() mem.PPN { return mem.PPN(uint64(e) & ppnMask >> ppnShift) }

// Flags extracts the flag bits from the entry.
func (e PTE) Flags() Flag { return Flag(uint64(e) & flagMask) }

// Valid reports whether V is set.
func (e PTE) Valid() bool { return e.Flags()&FlagV != 0 }

// IsLeaf reports whether any of R/W/X is set (an interior-node pointer
// has V=1 and R=W=X=0).
func (e PTE) IsLeaf() bool { return e.Flags()&(FlagR|FlagW|FlagX) != 0 }

func vpnIndex(vpn VPN, level int) int {
	return int((uint64(vpn) >> (9 * uint(level))) & 0x1ff)
}

// VAToVPN returns the VPN containing virtual address va and the 12-bit
// page offset within it.
func VAToVPN(va uint64) (VPN, uint64) {
	return VPN(va >> mem.PageShift), va & (mem.PageSize - 1)
}

// VPNToVA returns the base virtual address of vpn.
func VPNToVA(vpn VPN) uint64 {
	return uint64(vpn) << mem.PageShift
}

// PageTable is a three-level Sv39-like page table. It exclusively owns
// the frame of its root node and every interior-node frame allocated
// during mapping (§4.2); those are released when Destroy is called. A
// PageTable constructed via FromToken is a transient view over an
// existing root and owns no frames.
type PageTable struct {
	alloc   *mem.Allocator
	root    mem.PPN
	owned   []*mem.Handle // interior + root frames this table owns
	foreign bool          // true for FromToken views, which own nothing
}

// RootToken encodes the constant 8 in bits 60-63 (Sv39 mode) with the
// root PPN, per §3's definition of a root token.
func RootToken(root mem.PPN) uint64 {
	return uint64(8)<<60 | uint64(root)
}

// New allocates a fresh root frame and returns an empty page table.
func New(alloc *mem.Allocator) (*PageTable, bool) {
	h, ok := alloc.Alloc()
	if !ok {
		return nil, false
	}
	return &PageTable{alloc: alloc, root: h.PPN(), owned: []*mem.Handle{h}}, true
}

// FromToken constructs a transient view over an existing root page table
// identified by token. The returned table owns no frames; Destroy is a
// no-op on it.
func FromToken(alloc *mem.Allocator, token uint64) *PageTable {
	root := mem.PPN(token & (uint64(1)<<44 - 1))
	return &PageTable{alloc: alloc, root: root, foreign: true}
}

// Token returns this table's root token.
func (pt *PageTable) Token() uint64 { return RootToken(pt.root) }

func (pt *PageTable) pageOf(ppn mem.PPN) []PTE {
	// The allocator's arena stores Frame values as raw bytes; a page
	// table page is simply those bytes reinterpreted as 512 PTEs.
	bytes := pt.alloc.FrameAt(ppn)
	return ptesOf(bytes)
}

// walk finds the leaf PTE for vpn, allocating interior frames along the
// way when alloc is true. It returns nil if the walk falls off a missing
// interior node and alloc is false.
func (pt *PageTable) walk(vpn VPN, alloc bool) *PTE {
	ppn := pt.root
	for level := 2; level >= 0; level-- {
		ptes := pt.pageOf(ppn)
		idx := vpnIndex(vpn, level)
		pte := &ptes[idx]
		if level == 0 {
			return pte
		}
		if !pte.Valid() {
			if !alloc {
				return nil
			}
			h, ok := pt.alloc.Alloc()
			if !ok {
				return nil
			}
			pt.owned = append(pt.owned, h)
			*pte = mkPTE(h.PPN(), FlagV)
		}
		if pte.IsLeaf() {
			panic("vm: walk hit a leaf before the final level")
		}
		ppn = pte.PPN()
	}
	panic("unreachable")
}

// Map installs vpn -> ppn with the given permission flags (§4.2). flags
// must not include V; it is added automatically. Map panics if vpn is
// already mapped.
func (pt *PageTable) Map(vpn VPN, ppn mem.PPN, flags Flag) {
	pte := pt.walk(vpn, true)
	if pte == nil {
		panic("vm: map: out of memory for page-table frames")
	}
	if pte.Valid() {
		panic(fmt.Sprintf("vm: map: vpn %#x already mapped", vpn))
	}
	*pte = mkPTE(ppn, flags|FlagV)
}

// Unmap clears the leaf PTE for vpn. It panics if vpn is not mapped.
func (pt *PageTable) Unmap(vpn VPN) {
	pte := pt.walk(vpn, false)
	if pte == nil || !pte.Valid() {
		panic(fmt.Sprintf("vm: unmap: vpn %#x not mapped", vpn))
	}
	*pte = 0
}

// Translate returns a copy of the leaf PTE for vpn if it is reachable
// and valid.
func (pt *PageTable) Translate(vpn VPN) (PTE, bool) {
	pte := pt.walk(vpn, false)
	if pte == nil || !pte.Valid() {
		return 0, false
	}
	return *pte, true
}

// TranslateVA translates a full virtual address to a physical address by
// translating its containing VPN and adding back the page offset.
func (pt *PageTable) TranslateVA(va uint64) (uint64, bool) {
	vpn, off := VAToVPN(va)
	pte, ok := pt.Translate(vpn)
	if !ok {
		return 0, false
	}
	return pte.PPN().Addr() + off, true
}

// Destroy frees every frame this table owns (root plus interior nodes).
// It is a no-op on a table constructed via FromToken.
func (pt *PageTable) Destroy() {
	if pt.foreign {
		return
	}
	for _, h := range pt.owned {
		h.Free()
	}
	pt.owned = nil
}
