package vm

import "github.com/gokernel/rvos/mem"

// TranslatedByteBuffer walks the user address space's page table and
// returns the [va, va+len) span as a slice of byte slices, one per
// physical page the span crosses, so that kernel code can read or write
// user memory without the two address spaces ever needing to share a
// mapping (§4.4 "cross-space access", component D).
func TranslatedByteBuffer(pt *PageTable, va uint64, length int) [][]byte {
	var out [][]byte
	end := va + uint64(length)
	for va < end {
		vpn, pageOff := VAToVPN(va)
		pte, ok := pt.Translate(vpn)
		if !ok {
			panic("vm: translated_byte_buffer: unmapped page in range")
		}
		frame := pt.alloc.FrameAt(pte.PPN())
		avail := uint64(mem.PageSize) - pageOff
		want := end - va
		if want < avail {
			avail = want
		}
		out = append(out, frame[pageOff:pageOff+avail])
		va += avail
	}
	return out
}

// TranslatedStr reads a NUL-terminated C string out of user memory
// starting at va, one byte at a time across page boundaries.
func TranslatedStr(pt *PageTable, va uint64) string {
	var buf []byte
	for {
		vpn, pageOff := VAToVPN(va)
		pte, ok := pt.Translate(vpn)
		if !ok {
			panic("vm: translated_str: unmapped page")
		}
		frame := pt.alloc.FrameAt(pte.PPN())
		b := frame[pageOff]
		if b == 0 {
			break
		}
		buf = append(buf, b)
		va++
	}
	return string(buf)
}

// TranslatedRefBytes returns the n bytes at va as a single contiguous
// slice view when they do not cross a page boundary, which is the only
// case the kernel relies on for fixed-size struct reads/writes (trap
// contexts, syscall argument structs). It panics if the range crosses a
// page.
func TranslatedRefBytes(pt *PageTable, va uint64, n int) []byte {
	vpn, pageOff := VAToVPN(va)
	if pageOff+uint64(n) > mem.PageSize {
		panic("vm: translated_ref: access crosses page boundary")
	}
	pte, ok := pt.Translate(vpn)
	if !ok {
		panic("vm: translated_ref: unmapped page")
	}
	frame := pt.alloc.FrameAt(pte.PPN())
	return frame[pageOff : pageOff+uint64(n)]
}
