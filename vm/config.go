package vm

import "github.com/gokernel/rvos/mem"

// Layout constants for the simulated Sv39 address space, matching the
// rCore-tutorial original's os/src/config.rs and os/src/task/id.rs.
const (
	PageSize       = mem.PageSize
	UserStackSize  = 4096
	KernelStackSize = 4096 * 2

	// vaBits is the width of the simulated virtual address space (Sv39
	// uses 39 usable bits).
	vaBits = 39

	// Trampoline sits at the very top of every address space.
	Trampoline = uint64(1)<<vaBits - PageSize
	// TrapContextBase is the page immediately below the trampoline,
	// holding thread 0's trap context; higher tids are placed at
	// successively lower pages (see TrapCxBottomFromTid).
	TrapContextBase = Trampoline - PageSize
)

// KernelStackPosition returns the (bottom, top) virtual addresses of the
// kernel stack reserved for kernel-stack id k, with a guard page above it
// (§4.5).
func KernelStackPosition(k int) (bottom, top uint64) {
	top = Trampoline - uint64(k)*(KernelStackSize+PageSize)
	bottom = top - KernelStackSize
	return
}

// TrapCxBottomFromTid returns the base virtual address of thread tid's
// trap-context page (§4.6).
func TrapCxBottomFromTid(tid int) uint64 {
	return TrapContextBase - uint64(tid)*PageSize
}

// UstackBottomFromTid returns the base virtual address of thread tid's
// user stack given the process's user-stack base (§4.6).
func UstackBottomFromTid(ustackBase uint64, tid int) uint64 {
	return ustackBase + uint64(tid)*(PageSize+UserStackSize)
}
