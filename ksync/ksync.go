// Package ksync implements component L: the kernel's user-visible
// synchronization primitives (spin and blocking mutexes, counting
// semaphores, and condition variables), grounded on the rCore-tutorial
// original's sync/{mutex,semaphore,condvar}.rs wait-queue semantics.
//
// The original parks a blocked task by pulling it off its processor's
// run queue and pushing it onto the primitive's own wait queue, to be
// pushed back onto the run queue by whichever call (Unlock, Up, Signal)
// wakes it. This kernel's trap.Step runs every thread's next syscall
// synchronously on the single goroutine driving sched.Processor.IdleLoop
// (see that package's doc comment) with no goroutine-per-thread
// concurrency to park, so a primitive here cannot literally block its
// caller. Instead every blocking operation is expressed as a retry: it
// takes an owner (the blocked thread's identity, compared by pointer
// through the any interface) and a wake callback, and reports whether
// it acquired or must be retried. A caller that gets "must retry" marks
// its thread Blocked and returns out to trap.Step, which leaves the
// thread off the ready queue until wake is called; trap.Step then
// re-dispatches the identical syscall next time the thread runs,
// driving the retry. This is the direct analog of the original's wait
// queue: the primitive's own waiter list IS the wait queue, and wake is
// the hand-off that used to be "push onto the run queue."
package ksync

import "sync"

// Mutex is the common interface satisfied by both mutex flavors, so
// that callers (e.g. a process's mutex-handle table) can hold either
// behind one type, per §5.2.
type Mutex interface {
	// Acquire attempts to take the mutex on behalf of owner. It returns
	// acquired=true if the caller now holds the mutex. If acquired is
	// false, parked reports whether owner has been queued to be woken
	// later (true) versus should simply be retried without blocking
	// (spin mutexes never park). A caller that sees acquired=false,
	// parked=true must mark owner Blocked; wake is called exactly once,
	// when owner should be retried.
	Acquire(owner any, wake func()) (acquired bool, parked bool)
	Unlock()
}

// MutexSpin busy-waits instead of parking, appropriate for critical
// sections expected to be very short (§5.2). On this kernel's single
// hart a spin mutex never actually spins the caller; it reports failure
// and relies on the ready-queue round-robin to retry the owning thread
// on its next turn, which is the cooperative-scheduling equivalent of
// spinning.
type MutexSpin struct {
	mu sync.Mutex
}

func (m *MutexSpin) Acquire(owner any, wake func()) (bool, bool) {
	return m.mu.TryLock(), false
}

func (m *MutexSpin) Unlock() { m.mu.Unlock() }

// MutexBlocking parks waiters in FIFO order instead of spinning, handing
// the lock directly to the oldest waiter on Unlock (§5.2).
type MutexBlocking struct {
	mu      sync.Mutex
	locked  bool
	holder  any
	waiters []waiter
}

type waiter struct {
	owner any
	wake  func()
}

// Acquire takes the mutex for owner if it is free, or if owner is the
// waiter a prior Unlock already handed the mutex to (the retry that
// follows being woken). Otherwise it queues owner, deduping repeated
// retries of an already-queued owner, and reports parked=true.
func (m *MutexBlocking) Acquire(owner any, wake func()) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locked {
		m.locked = true
		m.holder = owner
		return true, false
	}
	if m.holder == owner {
		return true, false
	}
	for _, w := range m.waiters {
		if w.owner == owner {
			return false, true
		}
	}
	m.waiters = append(m.waiters, waiter{owner: owner, wake: wake})
	return false, true
}

// Unlock releases the mutex, handing it directly to the oldest waiter
// if any are parked (which keeps locked true and becomes the new
// holder, matching the original's hand-off-without-intermediate-free
// behavior) or marking it free otherwise. It panics if the mutex is not
// held.
func (m *MutexBlocking) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		panic("ksync: unlock of unlocked mutex")
	}
	if len(m.waiters) == 0 {
		m.locked = false
		m.holder = nil
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.holder = next.owner
	next.wake()
}

// Semaphore is a counting semaphore that blocks Down callers when the
// count is non-positive, waking the oldest waiter on every Up (§5.2).
type Semaphore struct {
	mu      sync.Mutex
	count   int
	waiters []semWaiter
}

type semWaiter struct {
	owner   any
	wake    func()
	granted bool
}

// NewSemaphore returns a semaphore initialized to count.
func NewSemaphore(count int) *Semaphore {
	return &Semaphore{count: count}
}

// Down decrements the count on owner's behalf and reports whether the
// decrement succeeded. The decrement happens exactly once per logical
// call: the first Down for a given owner always decrements count; if
// that leaves count negative, owner is queued ungranted and every
// retry with the same owner re-checks the queue instead of decrementing
// again, until Up marks it granted.
func (s *Semaphore) Down(owner any, wake func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.waiters {
		if w.owner == owner {
			if w.granted {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				return true
			}
			return false
		}
	}

	s.count--
	if s.count >= 0 {
		return true
	}
	s.waiters = append(s.waiters, semWaiter{owner: owner, wake: wake})
	return false
}

// Up increments the count, waking the oldest ungranted waiter if the
// increment satisfies one.
func (s *Semaphore) Up() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if s.count <= 0 {
		for i := range s.waiters {
			if !s.waiters[i].granted {
				s.waiters[i].granted = true
				s.waiters[i].wake()
				return
			}
		}
	}
}

// Condvar is a condition variable that must be used with an externally
// held Mutex, exactly as in the original: the caller's lk is unlocked
// on the first Wait call for a given owner and must be reacquired
// before Wait finally reports true (§5.2).
type Condvar struct {
	mu      sync.Mutex
	waiters []cvWaiter
}

type cvWaiter struct {
	owner   any
	wake    func()
	granted bool
}

// Wait drives one owner's wait-then-reacquire cycle. The first call for
// owner unlocks lk and registers owner in the wait list, returning
// false. Subsequent calls before Signal targets owner also return
// false without touching lk again. Once Signal has granted owner, Wait
// attempts to reacquire lk on every call, returning true (and removing
// owner from the wait list) only once that succeeds.
func (c *Condvar) Wait(owner any, lk Mutex, wake func()) bool {
	c.mu.Lock()
	idx := -1
	for i, w := range c.waiters {
		if w.owner == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.waiters = append(c.waiters, cvWaiter{owner: owner, wake: wake})
		c.mu.Unlock()
		lk.Unlock()
		return false
	}
	granted := c.waiters[idx].granted
	c.mu.Unlock()

	if !granted {
		return false
	}
	acquired, _ := lk.Acquire(owner, wake)
	if !acquired {
		return false
	}
	c.mu.Lock()
	for i, w := range c.waiters {
		if w.owner == owner {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return true
}

// Signal wakes the oldest ungranted waiter, if any.
func (c *Condvar) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.waiters {
		if !c.waiters[i].granted {
			c.waiters[i].granted = true
			c.waiters[i].wake()
			return
		}
	}
}
