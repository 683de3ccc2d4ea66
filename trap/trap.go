// Package trap implements component I: syscall dispatch and the
// signal-delivery pass run before every return to user space, grounded
// on spec §4.7 step 6 and §4.9, and on the original's trap/mod.rs
// trap_handler dispatch-by-scause shape, reduced here to dispatch-by-
// syscall-number since this kernel drives syscalls as direct Go calls
// rather than real ecall traps (see the implementation vehicle note at
// the top of the module).
package trap

import (
	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/fs"
	"github.com/gokernel/rvos/mem"
	"github.com/gokernel/rvos/proc"
	"github.com/gokernel/rvos/sched"
	"github.com/gokernel/rvos/signal"
	"github.com/gokernel/rvos/vm"
)

// Kernel bundles the global resources syscall handlers need: the frame
// allocator, the kernel's own address space (for kernel-stack/trap-
// context mapping), the mounted root file system, and the trampoline
// frame shared by every address space. Exactly one Kernel exists per
// boot, constructed by cmd/kernel's main.
type Kernel struct {
	Frames      *mem.Allocator
	KernelSpace *vm.AddressSpace
	Root        *fs.FileSystem
	Trampoline  mem.PPN
	Timers      *sched.TimerQueue
	NowMs       func() int64
}

// K is the running kernel's shared state, set once by cmd/kernel before
// starting the idle loop.
var K *Kernel

// Handler is one syscall's implementation: it receives the calling
// thread and its three argument registers and returns the value to
// place in a0.
type Handler func(t *proc.TCB, a0, a1, a2 uint64) int64

var table = map[int64]Handler{
	defs.SysOpen:       sysOpen,
	defs.SysWrite:      sysWrite,
	defs.SysRead:       sysRead,
	defs.SysExit:       sysExit,
	defs.SysYield:      sysYield,
	defs.SysGetpid:     sysGetpid,
	defs.SysGetTime:    sysGetTime,
	defs.SysDup:        sysDup,
	defs.SysClose:      sysClose,
	defs.SysPipe:       sysPipe,
	defs.SysFork:       sysFork,
	defs.SysExec:       sysExec,
	defs.SysWaitpid:    sysWaitpid,
	defs.SysKill:       sysKill,
	defs.SysSigaction:  sysSigaction,
	defs.SysSigprocmask: sysSigprocmask,
	defs.SysSigreturn:  sysSigreturn,

	defs.SysThreadCreate:  sysThreadCreate,
	defs.SysGetTid:        sysGetTid,
	defs.SysWaitTid:       sysWaitTid,
	defs.SysMutexCreate:   sysMutexCreate,
	defs.SysMutexLock:     sysMutexLock,
	defs.SysMutexUnlock:   sysMutexUnlock,
	defs.SysSemCreate:     sysSemCreate,
	defs.SysSemUp:         sysSemUp,
	defs.SysSemDown:       sysSemDown,
	defs.SysCondvarCreate: sysCondvarCreate,
	defs.SysCondvarSignal: sysCondvarSignal,
	defs.SysCondvarWait:   sysCondvarWait,
}

// Step runs one trap: it dispatches the syscall named in the thread's
// trap context, stores the result in a0, then runs one pass of signal
// delivery before returning control to IdleLoop, matching the "before
// returning: run signal delivery" ordering of §4.7 step 6.
func Step(t *proc.TCB) {
	tc := t.TrapContext()
	num := int64(tc.X[17]) // a7 carries the syscall number
	h, ok := table[num]
	if !ok {
		t.Process.Signal.Raise(signal.SIGILL)
		deliverSignals(t)
		return
	}
	ret := h(t, tc.X[10], tc.X[11], tc.X[12])
	tc.SetA0(uint64(ret))
	deliverSignals(t)
}

// deliverSignals runs the delivery loop described in §4.9: it acts on
// at most one signal per Step call (matching the original's "deliver
// once per trap return" cadence), saving the trap context into the
// signal backup slot when a user handler is installed, marking the
// thread Blocked when the process is frozen, and marking it Zombie when
// the process is killed.
func deliverSignals(t *proc.TCB) {
	outcome, act := t.Process.Signal.Deliver(0)
	switch outcome {
	case signal.OutcomeNone:
		return
	case signal.OutcomeUserHandler:
		tc := t.TrapContext()
		saved := *tc
		t.Process.Signal.Backup = signal.TrapBackup{Saved: &saved, Valid: true}
		tc.Sepc = act.Handler
		tc.SetA0(uint64(t.Process.Signal.Handling()))
	case signal.OutcomeFrozen:
		// The thread stays Blocked, off the ready queue. sysKill
		// re-enqueues Blocked threads only when it delivers SIGCONT; a
		// SIGKILL sent while frozen does not wake the thread.
		t.Status = proc.Blocked
	case signal.OutcomeKilled:
		finishThread(t, -1)
	}
}

// finishThread marks t a zombie with exitCode and, if it was the
// process's last thread, marks the whole process exited (§4.8).
func finishThread(t *proc.TCB, exitCode int) {
	t.Status = proc.Zombie
	t.ExitCode = exitCode
	live := 0
	for _, th := range t.Process.Threads.Elems() {
		if th.Status != proc.Zombie {
			live++
		}
	}
	if live == 0 {
		t.Process.MarkZombie(exitCode)
	}
}
