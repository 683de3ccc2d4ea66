// Package accnt accumulates per-process CPU accounting, adapted from the
// teacher's accnt package and wired onto proc.PCB as its Accounting
// field.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gokernel/rvos/util"
)

// Accnt holds per-process user/system time totals in nanoseconds.
type Accnt struct {
	Userns int64
	Sysns  int64
	mu     sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Now returns the current time in nanoseconds since the Unix epoch.
func (a *Accnt) Now() int64 {
	return time.Now().UnixNano()
}

// Add merges another accounting record into this one.
func (a *Accnt) Add(n *Accnt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
}

// Rusage is the (seconds, microseconds) pair reported for user and system
// time, mirroring POSIX struct rusage's two timevals.
type Rusage struct {
	UserSec, UserUsec int64
	SysSec, SysUsec   int64
}

// Snapshot returns a consistent rusage-style snapshot of the accounting
// record.
func (a *Accnt) Snapshot() Rusage {
	a.mu.Lock()
	defer a.mu.Unlock()
	totv := func(nano int64) (int64, int64) {
		return nano / 1e9, (nano % 1e9) / 1000
	}
	us, uu := totv(a.Userns)
	ss, su := totv(a.Sysns)
	return Rusage{UserSec: us, UserUsec: uu, SysSec: ss, SysUsec: su}
}

// Bytes serializes the accounting record the way a getrusage-style
// syscall would lay it out in user memory: two timevals (8+8 bytes each).
func (a *Accnt) Bytes() []uint8 {
	ru := a.Snapshot()
	ret := make([]uint8, 4*8)
	util.Writen(ret, 8, 0, int(ru.UserSec))
	util.Writen(ret, 8, 8, int(ru.UserUsec))
	util.Writen(ret, 8, 16, int(ru.SysSec))
	util.Writen(ret, 8, 24, int(ru.SysUsec))
	return ret
}
