// Package limits implements system-wide resource caps as atomic token
// buckets, adapted from the teacher's limits package (Syslimit_t,
// Sysatomic_t). The original tracked x86 subsystems this specification
// has no equivalent of (TCP segments, ARP entries, routes); those
// fields are dropped and replaced with caps for live processes, open
// pipes, file-descriptor slots, and cached block-device pages. Of these
// only Fds is taken anywhere: one slot per inode allocation in fs.
package limits

import (
	"sync/atomic"
)

// Atomic is a resource counter that can be atomically given back or
// taken from, going negative only transiently inside Taken before it
// self-corrects; callers observe only true/false.
type Atomic int64

// Given increases the available count by n.
func (a *Atomic) Given(n uint) {
	atomic.AddInt64((*int64)(a), int64(n))
}

// Taken attempts to decrement the available count by n, returning false
// (and leaving the count unchanged) if that would take it negative.
func (a *Atomic) Taken(n uint) bool {
	if atomic.AddInt64((*int64)(a), -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(a), int64(n))
	return false
}

// Take is Taken(1).
func (a *Atomic) Take() bool { return a.Taken(1) }

// Give is Given(1).
func (a *Atomic) Give() { a.Given(1) }

// Sys holds the kernel's configured system-wide resource limits.
type Sys struct {
	Procs  Atomic // live process slots
	Pipes  Atomic // open pipe slots
	Fds    Atomic // open file-descriptor slots, system wide
	Blocks Atomic // cached block-device pages
}

// Default returns the kernel's default resource limits, sized for the
// teaching kernel rather than the teacher's production-scale defaults.
func Default() *Sys {
	return &Sys{
		Procs:  1024,
		Pipes:  1024,
		Fds:    4096,
		Blocks: 16, // matches the spec's 16-entry block cache (§6.1)
	}
}

// Syslimit is the process-wide limit set, mirroring the teacher's
// package-level Syslimit singleton.
var Syslimit = Default()
