package ksync

import "testing"

func TestMutexSpinAcquireIsNonBlockingAndExclusive(t *testing.T) {
	var m MutexSpin
	acquired, parked := m.Acquire("a", nil)
	if !acquired || parked {
		t.Fatalf("first Acquire: acquired=%v parked=%v, want true/false", acquired, parked)
	}
	acquired, parked = m.Acquire("b", nil)
	if acquired || parked {
		t.Fatalf("contended Acquire: acquired=%v parked=%v, want false/false (retry, never queued)", acquired, parked)
	}
	m.Unlock()
	acquired, _ = m.Acquire("b", nil)
	if !acquired {
		t.Fatal("Acquire after Unlock should succeed")
	}
}

func TestMutexBlockingQueuesAndHandsOffFIFO(t *testing.T) {
	var m MutexBlocking
	acquired, _ := m.Acquire("owner1", nil)
	if !acquired {
		t.Fatal("first Acquire on a free mutex must succeed")
	}

	var woke1, woke2 bool
	acquired, parked := m.Acquire("owner2", func() { woke1 = true })
	if acquired || !parked {
		t.Fatalf("owner2 Acquire on held mutex: acquired=%v parked=%v, want false/true", acquired, parked)
	}
	acquired, parked = m.Acquire("owner3", func() { woke2 = true })
	if acquired || !parked {
		t.Fatalf("owner3 Acquire on held mutex: acquired=%v parked=%v, want false/true", acquired, parked)
	}

	// retrying owner2 before any Unlock must not re-queue it.
	m.Acquire("owner2", func() { woke1 = true })

	m.Unlock() // must hand off to owner2, the oldest waiter
	if !woke1 {
		t.Fatal("Unlock did not wake the oldest waiter (owner2)")
	}
	if woke2 {
		t.Fatal("Unlock woke owner3 out of FIFO order")
	}

	acquired, _ = m.Acquire("owner2", nil)
	if !acquired {
		t.Fatal("owner2's retry after being woken must now acquire")
	}

	m.Unlock()
	if !woke2 {
		t.Fatal("second Unlock did not wake owner3")
	}
}

func TestMutexBlockingUnlockOfUnlockedPanics(t *testing.T) {
	var m MutexBlocking
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic unlocking an unlocked mutex")
		}
	}()
	m.Unlock()
}

func TestSemaphoreDownBlocksUntilUp(t *testing.T) {
	s := NewSemaphore(0)
	var woke bool
	if ok := s.Down("owner1", func() { woke = true }); ok {
		t.Fatal("Down on a zero-count semaphore must not succeed immediately")
	}
	// repeated retries before Up must not consume additional counts.
	if ok := s.Down("owner1", func() { woke = true }); ok {
		t.Fatal("Down retry before Up must still report false")
	}
	s.Up()
	if !woke {
		t.Fatal("Up did not wake the queued waiter")
	}
	if ok := s.Down("owner1", nil); !ok {
		t.Fatal("Down retry after being woken must now succeed")
	}
}

func TestSemaphoreDownSucceedsImmediatelyWhenPositive(t *testing.T) {
	s := NewSemaphore(1)
	if ok := s.Down("owner1", nil); !ok {
		t.Fatal("Down on a positive-count semaphore must succeed immediately")
	}
	if ok := s.Down("owner2", func() {}); ok {
		t.Fatal("second Down must block once the count is exhausted")
	}
}

func TestCondvarWaitReacquiresLockAfterSignal(t *testing.T) {
	var m MutexSpin
	c := &Condvar{}

	acquired, _ := m.Acquire("owner1", nil)
	if !acquired {
		t.Fatal("setup: owner1 must acquire m")
	}

	var woke bool
	wake := func() { woke = true }
	if done := c.Wait("owner1", &m, wake); done {
		t.Fatal("first Wait call must release m and return false")
	}

	// m must have been released by Wait so another owner can take it.
	acquired, _ = m.Acquire("owner2", nil)
	if !acquired {
		t.Fatal("Wait did not release the lock before parking")
	}
	m.Unlock()

	// retrying before Signal must not re-acquire or complete.
	if done := c.Wait("owner1", &m, wake); done {
		t.Fatal("Wait retry before Signal must still return false")
	}

	c.Signal()
	if !woke {
		t.Fatal("Signal did not wake the waiting owner")
	}

	if done := c.Wait("owner1", &m, wake); !done {
		t.Fatal("Wait retry after Signal should reacquire m and return true")
	}
}

func TestCondvarSignalWithNoWaitersIsNoop(t *testing.T) {
	c := &Condvar{}
	c.Signal() // must not panic
}
