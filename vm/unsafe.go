package vm

import (
	"unsafe"

	"github.com/gokernel/rvos/mem"
)

const ptesPerPage = mem.PageSize / 8

// ptesOf reinterprets a physical frame's bytes as an array of 512 page-
// table entries, the same "page of ints" reinterpretation the teacher
// performs in mem.Pg2bytes/Bytepg2pg.
func ptesOf(f *mem.Frame) []PTE {
	return unsafe.Slice((*PTE)(unsafe.Pointer(f)), ptesPerPage)
}
