package trap

import (
	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/fd"
	"github.com/gokernel/rvos/fs"
	"github.com/gokernel/rvos/ksync"
	"github.com/gokernel/rvos/proc"
	"github.com/gokernel/rvos/sched"
	"github.com/gokernel/rvos/signal"
	"github.com/gokernel/rvos/util"
	"github.com/gokernel/rvos/vm"
)

func userBuffer(t *proc.TCB, va uint64, length int) *vm.UserBuffer {
	pt := t.Process.AddrSpace.Table()
	return vm.NewUserBuffer(vm.TranslatedByteBuffer(pt, va, length))
}

func sysWrite(t *proc.TCB, fdnum, bufVA, length uint64) int64 {
	f, ok := t.Process.Fds.Get(defs.Fdnum_t(fdnum))
	if !ok || !f.Writable() {
		return int64(-defs.EBADF)
	}
	n, err := f.Write(userBuffer(t, bufVA, int(length)))
	if err == -defs.EAGAIN {
		if b, ok := f.(fd.Blocker); ok {
			b.ParkWriter(t, func() { sched.Global.Enqueue(t) })
			t.Status = proc.Blocked
		}
		return int64(err)
	}
	if err != 0 {
		return int64(err)
	}
	return int64(n)
}

func sysRead(t *proc.TCB, fdnum, bufVA, length uint64) int64 {
	f, ok := t.Process.Fds.Get(defs.Fdnum_t(fdnum))
	if !ok || !f.Readable() {
		return int64(-defs.EBADF)
	}
	n, err := f.Read(userBuffer(t, bufVA, int(length)))
	if err == -defs.EAGAIN {
		if b, ok := f.(fd.Blocker); ok {
			b.ParkReader(t, func() { sched.Global.Enqueue(t) })
			t.Status = proc.Blocked
		}
		return int64(err)
	}
	if err != 0 {
		return int64(err)
	}
	return int64(n)
}

func sysExit(t *proc.TCB, code, _, _ uint64) int64 {
	finishThread(t, int(int32(code)))
	return 0
}

func sysYield(t *proc.TCB, _, _, _ uint64) int64 {
	sched.Yield(t)
	return 0
}

func sysGetpid(t *proc.TCB, _, _, _ uint64) int64 {
	return int64(t.Process.Pid)
}

func sysGetTime(t *proc.TCB, _, _, _ uint64) int64 {
	if K.NowMs == nil {
		return 0
	}
	return K.NowMs()
}

func sysDup(t *proc.TCB, fdnum, _, _ uint64) int64 {
	n, ok := t.Process.Fds.Dup(defs.Fdnum_t(fdnum))
	if !ok {
		return int64(-defs.EBADF)
	}
	return int64(n)
}

func sysClose(t *proc.TCB, fdnum, _, _ uint64) int64 {
	t.Process.Fds.Close(defs.Fdnum_t(fdnum))
	return 0
}

// sysOpen implements the open(path, flags) syscall against the mounted
// on-disk file system, grounded on easy-fs-fuse's open_file helper:
// O_CREATE makes a fresh root-directory entry when the name is absent,
// O_TRUNC clears an existing file's contents, and the resulting
// *fs.Inode is wrapped in an fd.OSInode and installed in the caller's
// descriptor table.
func sysOpen(t *proc.TCB, pathVA, flags, _ uint64) int64 {
	path := vm.TranslatedStr(t.Process.AddrSpace.Table(), pathVA)
	readable := flags&defs.OWrOnly == 0
	writable := flags&(defs.OWrOnly|defs.ORdWr) != 0

	root := fs.RootInode(K.Root)
	inode, ok := root.Find(path)
	if !ok {
		if flags&defs.OCreate == 0 {
			return int64(-defs.ENOENT)
		}
		inode, ok = root.Create(path)
		if !ok {
			return int64(-defs.ENOSPC)
		}
	}
	osInode := fd.OpenInode(inode, readable, writable, flags&defs.OTrunc != 0)
	return int64(t.Process.Fds.Alloc(osInode))
}

func sysPipe(t *proc.TCB, pipeVA, _, _ uint64) int64 {
	read, write := fd.NewPipe(K.Frames)
	rfd := t.Process.Fds.Alloc(read)
	wfd := t.Process.Fds.Alloc(write)
	bytes := vm.TranslatedRefBytes(t.Process.AddrSpace.Table(), pipeVA, 8)
	util.Writen(bytes, 4, 0, int(rfd))
	util.Writen(bytes, 4, 4, int(wfd))
	return 0
}

// NewMainThread builds tid-0 for p from an already-loaded address
// space, installing the initial trap context and enqueuing it on the
// scheduler, following the "every new process starts at tid 0" rule of
// §4.6. cmd/kernel calls this once at boot to spawn the init process;
// sysFork and sysExec build their own threads inline since they must
// adjust a pre-existing PCB/TCB rather than start fresh.
func NewMainThread(p *proc.PCB, entry, userSp uint64) *proc.TCB {
	tid := p.AllocTid()
	th := proc.NewTCB(p, tid, p.AddrSpace.UserStackBase, K.KernelSpace)
	*th.TrapContext() = proc.AppInitContext(entry, userSp, K.KernelSpace.Token(), th.KStack.Top(), 0)
	sched.Global.Enqueue(th)
	return th
}

func sysFork(t *proc.TCB, _, _, _ uint64) int64 {
	childAS := vm.FromExistedUser(K.Frames, K.Trampoline, t.Process.AddrSpace)
	child := proc.NewPCB(childAS)
	child.Fds = t.Process.Fds.Fork()
	t.Process.AddChild(child)

	childTid := child.AllocTid()
	childThread := proc.NewTCB(child, childTid, childAS.UserStackBase, K.KernelSpace)
	*childThread.TrapContext() = *t.TrapContext()
	childThread.TrapContext().SetA0(0) // fork returns 0 in the child
	childThread.TrapContext().KernelSp = childThread.KStack.Top()
	sched.Global.Enqueue(childThread)

	return int64(child.Pid)
}

// sysExec implements §4.6's "exec replaces the calling process's image
// in place" semantics. Following the original's process::exec, only the
// calling thread survives the call; it is re-seated as tid 0 against
// the freshly loaded address space and every other thread of the
// process is abandoned (a simplification documented in DESIGN.md: this
// kernel does not attempt to reproduce Linux's "other threads are
// killed asynchronously" ordering).
func sysExec(t *proc.TCB, pathVA, _, _ uint64) int64 {
	path := vm.TranslatedStr(t.Process.AddrSpace.Table(), pathVA)
	inode, ok := fs.RootInode(K.Root).Find(path)
	if !ok {
		return int64(-defs.ENOENT)
	}
	image := make([]byte, inode.Size())
	inode.ReadAt(0, image)

	oldAS := t.Process.AddrSpace
	newAS, userSp, entry, err := vm.FromELF(K.Frames, K.Trampoline, image, 1)
	if err != nil {
		return int64(-defs.ENOEXEC)
	}
	oldAS.Destroy()
	t.Process.AddrSpace = newAS

	t.UstackBase = newAS.UserStackBase
	t.TrapCxVA = vm.TrapCxBottomFromTid(0)
	*t.TrapContext() = proc.AppInitContext(entry, userSp, K.KernelSpace.Token(), t.KStack.Top(), 0)
	return 0
}

func sysWaitpid(t *proc.TCB, pid, exitCodeVA, _ uint64) int64 {
	code, ok := t.Process.Reap(int(int32(pid)))
	if !ok {
		return int64(-defs.ECHILD)
	}
	if exitCodeVA != 0 {
		bytes := vm.TranslatedRefBytes(t.Process.AddrSpace.Table(), exitCodeVA, 4)
		util.Writen(bytes, 4, 0, code)
	}
	return 0
}

func sysKill(t *proc.TCB, pid, signum, _ uint64) int64 {
	target, ok := proc.Lookup(int(pid))
	if !ok {
		return int64(-defs.ESRCH)
	}
	target.Signal.Raise(int(signum))
	if int(signum) == signal.SIGCONT {
		for _, th := range target.Threads.Elems() {
			if th.Status == proc.Blocked {
				sched.Global.Enqueue(th)
			}
		}
	}
	return 0
}

func sysSigaction(t *proc.TCB, signum, actionVA, oldActionVA uint64) int64 {
	if actionVA == 0 || oldActionVA == 0 {
		return int64(-defs.EINVAL)
	}
	actBytes := vm.TranslatedRefBytes(t.Process.AddrSpace.Table(), actionVA, 12)
	newAction := signal.Action{
		Handler: uint64(util.Readn(actBytes, 8, 0)),
		Mask:    uint32(util.Readn(actBytes, 4, 8)),
	}
	old, errc := t.Process.Signal.SetAction(int(signum), newAction)
	if errc != 0 {
		return int64(errc)
	}
	oldBytes := vm.TranslatedRefBytes(t.Process.AddrSpace.Table(), oldActionVA, 12)
	util.Writen(oldBytes, 8, 0, int(old.Handler))
	util.Writen(oldBytes, 4, 8, int(old.Mask))
	return 0
}

func sysSigprocmask(t *proc.TCB, mask, _, _ uint64) int64 {
	old := t.Process.Signal.SetMask(uint32(mask))
	return int64(old)
}

func sysSigreturn(t *proc.TCB, _, _, _ uint64) int64 {
	backup := t.Process.Signal.Backup
	if !backup.Valid {
		return int64(-defs.EINVAL)
	}
	saved := backup.Saved.(*proc.TrapContext)
	*t.TrapContext() = *saved
	t.Process.Signal.Backup = signal.TrapBackup{}
	t.Process.Signal.EndHandling(t.Process.Signal.Mask())
	return int64(t.TrapContext().A0())
}

func sysThreadCreate(t *proc.TCB, entry, arg, _ uint64) int64 {
	p := t.Process
	tid := p.AllocTid()
	ustackBottom := vm.UstackBottomFromTid(p.AddrSpace.UserStackBase, tid)
	ustackVPN, _ := vm.VAToVPN(ustackBottom)
	p.AddrSpace.InsertFramed(ustackVPN, ustackVPN+vm.VPN(vm.UserStackSize/vm.PageSize), vm.FlagR|vm.FlagW|vm.FlagU)
	trapCxVPN, _ := vm.VAToVPN(vm.TrapCxBottomFromTid(tid))
	p.AddrSpace.InsertFramed(trapCxVPN, trapCxVPN+1, vm.FlagR|vm.FlagW)
	th := proc.NewTCB(p, tid, p.AddrSpace.UserStackBase, K.KernelSpace)
	userSp := ustackBottom + vm.UserStackSize
	*th.TrapContext() = proc.AppInitContext(entry, userSp, K.KernelSpace.Token(), th.KStack.Top(), 0)
	th.TrapContext().X[10] = arg
	sched.Global.Enqueue(th)
	return int64(tid)
}

func sysGetTid(t *proc.TCB, _, _, _ uint64) int64 {
	return int64(t.Tid)
}

func sysWaitTid(t *proc.TCB, tid, _, _ uint64) int64 {
	th, ok := t.Process.Threads.Get(int(tid))
	if !ok || th.Status != proc.Zombie {
		return int64(-defs.ESRCH)
	}
	code := th.ExitCode
	th.Destroy()
	return int64(code)
}

func sysMutexCreate(t *proc.TCB, blocking, _, _ uint64) int64 {
	var m ksync.Mutex
	if blocking != 0 {
		m = &ksync.MutexBlocking{}
	} else {
		m = &ksync.MutexSpin{}
	}
	t.Process.Mutexes = append(t.Process.Mutexes, m)
	return int64(len(t.Process.Mutexes) - 1)
}

// sysMutexLock drives one retry of the mutex's owner/wake protocol
// (see ksync's package doc): if Acquire parks the calling thread, the
// thread is marked Blocked so IdleLoop leaves it off the ready queue
// until the mutex's Unlock calls wake, which re-enqueues it to retry
// this same syscall.
func sysMutexLock(t *proc.TCB, id, _, _ uint64) int64 {
	acquired, parked := t.Process.Mutexes[id].Acquire(t, func() { sched.Global.Enqueue(t) })
	if !acquired {
		if parked {
			t.Status = proc.Blocked
		}
		return int64(-defs.EAGAIN)
	}
	return 0
}

func sysMutexUnlock(t *proc.TCB, id, _, _ uint64) int64 {
	t.Process.Mutexes[id].Unlock()
	return 0
}

func sysSemCreate(t *proc.TCB, count, _, _ uint64) int64 {
	t.Process.Semaphores = append(t.Process.Semaphores, ksync.NewSemaphore(int(count)))
	return int64(len(t.Process.Semaphores) - 1)
}

func sysSemUp(t *proc.TCB, id, _, _ uint64) int64 {
	t.Process.Semaphores[id].Up()
	return 0
}

func sysSemDown(t *proc.TCB, id, _, _ uint64) int64 {
	if !t.Process.Semaphores[id].Down(t, func() { sched.Global.Enqueue(t) }) {
		t.Status = proc.Blocked
		return int64(-defs.EAGAIN)
	}
	return 0
}

func sysCondvarCreate(t *proc.TCB, _, _, _ uint64) int64 {
	t.Process.Condvars = append(t.Process.Condvars, &ksync.Condvar{})
	return int64(len(t.Process.Condvars) - 1)
}

func sysCondvarSignal(t *proc.TCB, id, _, _ uint64) int64 {
	t.Process.Condvars[id].Signal()
	return 0
}

func sysCondvarWait(t *proc.TCB, id, mutexID, _ uint64) int64 {
	done := t.Process.Condvars[id].Wait(t, t.Process.Mutexes[mutexID], func() { sched.Global.Enqueue(t) })
	if !done {
		t.Status = proc.Blocked
		return int64(-defs.EAGAIN)
	}
	return 0
}

