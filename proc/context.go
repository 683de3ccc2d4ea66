package proc

// TrapContext is the register file saved on trap entry and restored on
// trap return, laid out the way the original's TrapContext (trap/
// context.rs) is: general-purpose registers, sstatus, sepc, and the
// three fields the trampoline needs to re-enter the kernel (kernel
// satp, kernel stack pointer, trap handler entry), per §4.6. This
// kernel drives syscalls and signal delivery through Go function calls
// rather than a real sret/ecall round trip (see the implementation
// vehicle note in the module's top-level documentation), so TrapContext
// here is the data both directions of that call marshal through rather
// than a hardware register save area.
type TrapContext struct {
	X            [32]uint64 // x0-x31; x10 (a0) carries syscall return values
	Sstatus      uint64
	Sepc         uint64
	KernelSatp   uint64
	KernelSp     uint64
	TrapHandler  uint64
}

// AppInitContext builds the TrapContext a freshly loaded thread starts
// execution with: pc at entry, sp at the top of its user stack, and the
// bookkeeping fields needed to return into the kernel on its first trap.
func AppInitContext(entry, userSp, kernelSatp, kernelSp, trapHandler uint64) TrapContext {
	return TrapContext{
		Sepc:        entry,
		X:           [32]uint64{2: userSp}, // x2 is sp
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSp,
		TrapHandler: trapHandler,
	}
}

// A0 returns the value of register a0 (x10), the first argument and
// syscall return-value register.
func (tc *TrapContext) A0() uint64 { return tc.X[10] }

// SetA0 sets register a0, used to deliver a syscall's return value.
func (tc *TrapContext) SetA0(v uint64) { tc.X[10] = v }

// TaskContext holds the callee-saved registers a context switch must
// preserve: ra, sp and s0-s11, per §4.6/§6.1. This kernel's scheduler
// runs a thread by a direct function call rather than a hand-written
// assembly __switch, so TaskContext is carried for structural fidelity with the
// original (and so a real switch could be dropped in without disturbing
// any other type) but its fields are not read by sched.
type TaskContext struct {
	Ra uint64
	Sp uint64
	S  [12]uint64
}

// GotoRestoreContext builds the TaskContext used to resume a thread for
// the first time, pointing ra at the trap-return trampoline entry with
// sp set to the thread's kernel stack top.
func GotoRestoreContext(trapReturn, kernelSp uint64) TaskContext {
	return TaskContext{Ra: trapReturn, Sp: kernelSp}
}
