// Package proc implements components F and G: process and thread
// control blocks, grounded on spec §4.3/§4.5 and on the original's
// process.rs/task.rs shapes, expressed through the teacher's small-
// struct-with-embedded-sync.Mutex style (tinfo.Tnote_t/Threadinfo_t)
// generalized with the Table type in table.go in place of the teacher's
// runtime-dispatched hashtable.
package proc

import (
	"sync"

	"github.com/gokernel/rvos/accnt"
	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/fd"
	"github.com/gokernel/rvos/idalloc"
	"github.com/gokernel/rvos/ksync"
	"github.com/gokernel/rvos/signal"
	"github.com/gokernel/rvos/vm"
)

var pidTable = NewTable[*PCB]()

// Lookup returns the process control block for pid, if it is still
// live.
func Lookup(pid int) (*PCB, bool) { return pidTable.Get(pid) }

// PCB is one process control block (§4.3's "Process control block").
// Parent is a plain (not weak) pointer for simplicity: this kernel has
// no cycle-collection concern the original's Arc/Weak split exists to
// solve, since Go's garbage collector handles reference cycles.
type PCB struct {
	mu sync.Mutex

	Pid      int
	Parent   *PCB
	Children []*PCB

	AddrSpace *vm.AddressSpace
	Fds       *fd.Table

	ExitCode int
	Zombie   bool

	Threads      *Table[*TCB]
	tidAllocator *idalloc.Allocator

	Signal *signal.State

	Mutexes    []ksync.Mutex
	Semaphores []*ksync.Semaphore
	Condvars   []*ksync.Condvar

	Accounting *accnt.Accnt
}

// NewPCB allocates a fresh, empty process control block with the given
// address space and installs it into the global pid table.
func NewPCB(as *vm.AddressSpace) *PCB {
	p := &PCB{
		Pid:          idalloc.AllocPid(),
		AddrSpace:    as,
		Fds:          fd.NewTable(),
		Threads:      NewTable[*TCB](),
		tidAllocator: idalloc.New(),
		Signal:       signal.NewState(),
		Accounting:   &accnt.Accnt{},
	}
	pidTable.Set(p.Pid, p)
	return p
}

// AllocTid reserves the next thread id within this process.
func (p *PCB) AllocTid() int { return p.tidAllocator.Alloc() }

// DeallocTid returns tid to this process's allocator.
func (p *PCB) DeallocTid(tid int) { p.tidAllocator.Dealloc(tid) }

// AddChild records child as owned by p.
func (p *PCB) AddChild(child *PCB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	child.Parent = p
	p.Children = append(p.Children, child)
}

// Reap removes a zombie child by pid and returns its exit code, per
// waitpid's contract (§4.8/§6.2).
func (p *PCB) Reap(pid int) (exitCode int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.Children {
		if (pid == -1 || c.Pid == pid) && c.Zombie {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			idalloc.FreePid(c.Pid)
			pidTable.Del(c.Pid)
			return c.ExitCode, true
		}
	}
	return 0, false
}

// MarkZombie marks p exited with exitCode, destroys its address space,
// and reparents any remaining children to init (pid 1), if present
// (§4.8's process-exit sequence).
func (p *PCB) MarkZombie(exitCode int) {
	p.mu.Lock()
	p.ExitCode = exitCode
	p.Zombie = true
	children := p.Children
	p.Children = nil
	as := p.AddrSpace
	p.mu.Unlock()

	if init, ok := pidTable.Get(InitPid); ok && init != p {
		for _, c := range children {
			init.AddChild(c)
		}
	}
	if as != nil {
		as.Destroy()
	}
}

// InitPid is the PID of the first user process, the reparenting target
// for orphaned children (§4.8).
const InitPid = 1

// Exit0 is the zero (successful) exit code as a defs.Err_t. A process
// killed by a fatal signal exits with -1, not Exit0.
const Exit0 defs.Err_t = 0
