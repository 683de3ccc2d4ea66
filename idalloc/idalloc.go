// Package idalloc implements component E: the recycling id allocator
// shared by PID and kernel-stack-id assignment, and the kernel-stack
// region bookkeeping that ties an id to a slice of the kernel's own
// address space. Grounded on the teacher's hashtable-adjacent allocator
// style (biscuit/src/mem/physmem bump+recycle pattern reused here at the
// id level) and on original_source/os/src/task/id.rs's RecycleAllocator,
// kernel_stack_position, kstack_alloc/Drop.
package idalloc

import (
	"fmt"
	"sync"

	"github.com/gokernel/rvos/caller"
	"github.com/gokernel/rvos/vm"
)

// Allocator hands out small non-negative integer ids, recycling
// deallocated ones before growing the high-water mark. It is the
// generic engine behind both the PID allocator and the kernel-stack-id
// allocator (§4.5/§6.1).
type Allocator struct {
	mu       sync.Mutex
	current  int
	recycled []int
}

// New returns an empty Allocator.
func New() *Allocator {
	return &Allocator{}
}

// Alloc returns the next id, preferring a recycled one (LIFO) over
// growing current.
func (a *Allocator) Alloc() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	id := a.current
	a.current++
	return id
}

// Dealloc returns id to the pool. It panics on a double-dealloc or on
// an id that was never allocated, matching the original's assertions.
func (a *Allocator) Dealloc(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id >= a.current {
		caller.ReportOnce(fmt.Sprintf("dealloc of never-allocated id %d", id))
		panic(fmt.Sprintf("idalloc: dealloc of never-allocated id %d", id))
	}
	for _, r := range a.recycled {
		if r == id {
			caller.ReportOnce(fmt.Sprintf("id %d has been deallocated already", id))
			panic(fmt.Sprintf("idalloc: id %d has been deallocated already", id))
		}
	}
	a.recycled = append(a.recycled, id)
}

// IdlePid is the reserved PID of the idle task (§6.1).
const IdlePid = 0

var pidAllocator = &Allocator{current: IdlePid + 1}

// AllocPid allocates a new process id from the global PID allocator.
func AllocPid() int { return pidAllocator.Alloc() }

// FreePid returns pid to the global PID allocator.
func FreePid(pid int) { pidAllocator.Dealloc(pid) }

var kstackAllocator = New()

// KernelStack owns one kernel-stack id and the mapped region of the
// kernel's address space backing it (§4.5). Destroy must be called
// exactly once to release both.
type KernelStack struct {
	id      int
	kernel  *vm.AddressSpace
	freed   bool
}

// AllocKernelStack allocates a fresh kernel-stack id and maps its
// (bottom, top) span into the kernel address space as a framed R|W
// region with an implicit guard page below it (the gap left by
// vm.KernelStackPosition's spacing).
func AllocKernelStack(kernel *vm.AddressSpace) *KernelStack {
	id := kstackAllocator.Alloc()
	bottom, top := vm.KernelStackPosition(id)
	startVPN, _ := vm.VAToVPN(bottom)
	endVPN, _ := vm.VAToVPN(top)
	kernel.InsertFramed(startVPN, endVPN, vm.FlagR|vm.FlagW)
	return &KernelStack{id: id, kernel: kernel}
}

// Top returns the kernel stack's top virtual address.
func (k *KernelStack) Top() uint64 {
	_, top := vm.KernelStackPosition(k.id)
	return top
}

// Destroy unmaps the kernel stack's region and recycles its id. It
// panics if called twice.
func (k *KernelStack) Destroy() {
	if k.freed {
		caller.ReportOnce(fmt.Sprintf("double destroy of kernel stack %d", k.id))
		panic("idalloc: double destroy of kernel stack")
	}
	k.freed = true
	bottom, _ := vm.KernelStackPosition(k.id)
	startVPN, _ := vm.VAToVPN(bottom)
	k.kernel.RemoveRegionAt(startVPN)
	kstackAllocator.Dealloc(k.id)
}
