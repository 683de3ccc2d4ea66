// Command kernel boots the simulated RISC-V teaching kernel: it builds
// the physical frame arena and kernel address space (component A/B),
// mounts the on-disk file system (component O), loads the init
// process's ELF image, and drives the single-hart scheduler
// (component H) via trap.Step until the init process exits, adapted
// from the shape of the teacher's kernel/chentry.go entry-point style
// (os.Args-driven, log.Fatal on setup failure) though the teacher's own
// kernel/main.go was not present in the retrieved slice.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gokernel/rvos/fd"
	"github.com/gokernel/rvos/fs"
	"github.com/gokernel/rvos/mem"
	"github.com/gokernel/rvos/proc"
	"github.com/gokernel/rvos/sched"
	"github.com/gokernel/rvos/stats"
	"github.com/gokernel/rvos/trap"
	"github.com/gokernel/rvos/vm"
)

// physFrames is the size of the simulated physical memory arena, large
// enough for the kernel's own identity mapping plus a handful of user
// address spaces.
const physFrames = 16384

func usage(me string) {
	fmt.Printf("%s <disk image> <init elf>\n\nBoot the kernel against <disk image>, loading <init elf> as pid 1\n", me)
	os.Exit(1)
}

func main() {
	if len(os.Args) != 3 {
		usage(os.Args[0])
	}
	diskPath, initPath := os.Args[1], os.Args[2]

	alloc := mem.NewAllocator(0, physFrames)

	trampolineHandle, ok := alloc.Alloc()
	if !ok {
		log.Fatal("kernel: out of memory allocating trampoline frame")
	}
	trampoline := trampolineHandle.PPN()

	kernelSpace := vm.NewKernel(alloc, 0, physFrames, trampoline)

	dev, err := fs.OpenFileDisk(diskPath, 0)
	if err != nil {
		log.Fatalf("kernel: open disk %s: %v", diskPath, err)
	}
	root, err := fs.Open(dev)
	if err != nil {
		log.Fatalf("kernel: mount %s: %v", diskPath, err)
	}

	image, err := os.ReadFile(initPath)
	if err != nil {
		log.Fatalf("kernel: read init image %s: %v", initPath, err)
	}

	trap.K = &trap.Kernel{
		Frames:      alloc,
		KernelSpace: kernelSpace,
		Root:        root,
		Trampoline:  trampoline,
		Timers:      sched.NewTimerQueue(),
		NowMs:       func() int64 { return time.Now().UnixMilli() },
	}

	userSpace, userSp, entry, err := vm.FromELF(alloc, trampoline, image, 1)
	if err != nil {
		log.Fatalf("kernel: load init elf: %v", err)
	}

	initPCB := proc.NewPCB(userSpace)
	initPCB.Fds.Alloc(fd.NewStdin())
	initPCB.Fds.Alloc(fd.NewStdout())
	initPCB.Fds.Alloc(fd.NewStdout()) // fd 2: stderr aliases stdout

	trap.NewMainThread(initPCB, entry, userSp)
	stats.Scheduler.ThreadsCreated.Inc()

	stop := make(chan struct{})
	run := func(t *proc.TCB) {
		stats.Scheduler.ContextSwitches.Inc()
		trap.Step(t)
		switch t.Status {
		case proc.Ready:
			stats.Scheduler.Yields.Inc()
		case proc.Blocked:
			stats.Scheduler.Blocks.Inc()
		case proc.Zombie:
			stats.Scheduler.ThreadsExited.Inc()
		case proc.Running:
			// the syscall returned without changing status: the thread
			// is still runnable and is due for another trap round trip.
			t.Status = proc.Ready
		}
		if initPCB.Zombie {
			close(stop)
		}
	}

	sched.Global.IdleLoop(run, stop)

	if initPCB.ExitCode != 0 {
		os.Exit(initPCB.ExitCode)
	}
}
