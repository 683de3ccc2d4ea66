package proc

import (
	"unsafe"

	"github.com/gokernel/rvos/idalloc"
	"github.com/gokernel/rvos/vm"
)

func trapContextAt(as *vm.AddressSpace, vpn vm.VPN) *TrapContext {
	bytes := vm.TranslatedRefBytes(as.Table(), vm.VPNToVA(vpn), int(unsafe.Sizeof(TrapContext{})))
	return (*TrapContext)(unsafe.Pointer(&bytes[0]))
}

// Status is a thread's scheduling state (§4.5).
type Status int

const (
	Ready Status = iota
	Running
	Blocked
	Zombie
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// TCB is one thread control block (§4.3/§4.5/§4.6): a thread id, the
// owning process, its dedicated kernel stack, its trap-context virtual
// address within the process address space, and the status the
// scheduler acts on.
type TCB struct {
	Tid     int
	Process *PCB
	KStack  *idalloc.KernelStack

	UstackBase uint64
	TrapCxVA   uint64

	TaskCx TaskContext

	Status   Status
	ExitCode int
}

// NewTCB allocates a new thread within process p, with its own kernel
// stack and a trap-context page at the virtual address its tid implies.
func NewTCB(p *PCB, tid int, ustackBase uint64, kernel *vm.AddressSpace) *TCB {
	t := &TCB{
		Tid:        tid,
		Process:    p,
		KStack:     idalloc.AllocKernelStack(kernel),
		UstackBase: ustackBase,
		TrapCxVA:   vm.TrapCxBottomFromTid(tid),
		Status:     Ready,
	}
	p.Threads.Set(tid, t)
	return t
}

// TrapContext returns a pointer into the process address space's
// backing frame for this thread's trap context, letting the trap path
// read/write it directly as a TrapContext value.
func (t *TCB) TrapContext() *TrapContext {
	vpn := vm.VPN(t.TrapCxVA >> 12)
	return trapContextAt(t.Process.AddrSpace, vpn)
}

// Destroy tears down the thread's per-thread resources: its user stack
// and trap-context region and its kernel stack.
func (t *TCB) Destroy() {
	ustackStartVPN, _ := vm.VAToVPN(vm.UstackBottomFromTid(t.UstackBase, t.Tid))
	t.Process.AddrSpace.RemoveRegionAt(ustackStartVPN)
	trapCxVPN := vm.VPN(t.TrapCxVA >> 12)
	t.Process.AddrSpace.RemoveRegionAt(trapCxVPN)
	t.KStack.Destroy()
	t.Process.DeallocTid(t.Tid)
	t.Process.Threads.Del(t.Tid)
}
