package fd

import (
	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/mem"
	"github.com/gokernel/rvos/vm"
)

// ringBuffer is a single-page circular byte buffer, the same head/tail
// modular-arithmetic shape as the teacher's circbuf.Circbuf_t, reduced
// to the operations a pipe needs: the teacher's lazy physical-page
// backing, refcounted sharing, and raw TCP-style zero-copy windows
// (Rawread/Rawwrite) have no counterpart here, since a pipe owns one
// dedicated mem.Handle for its whole lifetime rather than borrowing
// pages for zero-copy networking.
type ringBuffer struct {
	handle     *mem.Handle
	buf        []byte
	head, tail int
}

func newRingBuffer(alloc *mem.Allocator) *ringBuffer {
	h, ok := alloc.Alloc()
	if !ok {
		panic("fd: out of memory allocating pipe buffer")
	}
	return &ringBuffer{handle: h, buf: h.Bytes()[:]}
}

func (r *ringBuffer) full() bool  { return r.head-r.tail == len(r.buf) }
func (r *ringBuffer) empty() bool { return r.head == r.tail }

// write copies from src into the ring, wrapping as needed, stopping
// when either src or the ring's free space is exhausted.
func (r *ringBuffer) write(src []byte) int {
	n := 0
	for n < len(src) && !r.full() {
		idx := r.head % len(r.buf)
		r.buf[idx] = src[n]
		r.head++
		n++
	}
	return n
}

// read copies from the ring into dst, wrapping as needed, stopping when
// either dst is full or the ring is empty.
func (r *ringBuffer) read(dst []byte) int {
	n := 0
	for n < len(dst) && !r.empty() {
		idx := r.tail % len(r.buf)
		dst[n] = r.buf[idx]
		r.tail++
		n++
	}
	return n
}

// waiter is one thread parked on a pipe's read or write side, grounded
// on the ownership/wake-callback shape ksync's blocking primitives use
// for the same reason: this kernel's trap.Step has no goroutine per
// thread to literally suspend (see ksync's package doc), so a parked
// reader or writer is just an entry here to be retried once wake fires.
type waiter struct {
	owner any
	wake  func()
}

// pipeState is the ring buffer and close flags shared by a pipe's read
// and write ends, plus the FIFO of threads parked on each side.
type pipeState struct {
	rb           *ringBuffer
	readerClosed bool
	writerClosed bool
	readWaiters  []waiter
	writeWaiters []waiter
}

// Pipe is one end of an anonymous pipe. Read and write ends share a
// pipeState; Close on either side wakes every thread parked on the
// other so it observes EOF/EPIPE instead of waiting forever.
type Pipe struct {
	shared   *pipeState
	readable bool
	writable bool
}

// Blocker is implemented by File values whose Read or Write can report
// "would block" (defs.EAGAIN) instead of completing, so that sysRead
// and sysWrite know how to park the calling thread rather than treating
// EAGAIN as a hard failure. Grounded on spec §4.10's blocking I/O
// requirement, reworked for this kernel's retry-driven scheduling (see
// ksync's package doc) instead of an in-line blocking wait.
type Blocker interface {
	ParkReader(owner any, wake func())
	ParkWriter(owner any, wake func())
}

// NewPipe allocates a fresh pipe and returns its (read, write) ends.
func NewPipe(alloc *mem.Allocator) (*Pipe, *Pipe) {
	shared := &pipeState{rb: newRingBuffer(alloc)}
	read := &Pipe{shared: shared, readable: true}
	write := &Pipe{shared: shared, writable: true}
	return read, write
}

func (p *Pipe) Readable() bool { return p.readable }
func (p *Pipe) Writable() bool { return p.writable }

// Close marks this end closed and wakes every thread parked on the
// peer side so it observes EOF/EPIPE instead of blocking forever.
func (p *Pipe) Close() {
	s := p.shared
	if p.readable {
		s.readerClosed = true
	}
	if p.writable {
		s.writerClosed = true
	}
	wakeAll(&s.readWaiters)
	wakeAll(&s.writeWaiters)
}

func wakeAll(waiters *[]waiter) {
	for _, w := range *waiters {
		w.wake()
	}
	*waiters = nil
}

// Read attempts to copy available data into buf without blocking. If
// the ring is empty and the write end is still open, it returns
// (0, -defs.EAGAIN); sysRead uses ParkReader to register the caller and
// retries the same syscall once woken. If the write end has closed, an
// empty ring reports EOF as (0, 0), matching a closed pipe's normal
// read(2) behavior.
func (p *Pipe) Read(buf *vm.UserBuffer) (int, defs.Err_t) {
	if !p.readable {
		return 0, -defs.EBADF
	}
	s := p.shared
	if s.rb.empty() {
		if s.writerClosed {
			return 0, 0
		}
		return 0, -defs.EAGAIN
	}
	dst := make([]byte, buf.Len())
	n := s.rb.read(dst)
	wakeAll(&s.writeWaiters)
	if n > 0 {
		buf.Write(dst[:n])
	}
	return n, 0
}

// Write attempts to copy as much of buf into the ring as fits in one
// attempt without blocking, a POSIX-style possibly-partial write rather
// than the all-or-nothing write the original rCore pipe performs: since
// this kernel retries a blocked syscall from scratch (see ksync's
// package doc), a write that copied some bytes and then had to park
// would otherwise lose track of how much it had already written. If the
// read end has closed, Write instead reports -defs.EPIPE; if the ring
// is completely full and the read end is still open, it reports
// -defs.EAGAIN so sysWrite can park the caller with ParkWriter.
func (p *Pipe) Write(buf *vm.UserBuffer) (int, defs.Err_t) {
	if !p.writable {
		return 0, -defs.EBADF
	}
	s := p.shared
	if s.readerClosed {
		return 0, -defs.EPIPE
	}
	if s.rb.full() {
		return 0, -defs.EAGAIN
	}
	src := make([]byte, buf.Len())
	buf.Read(src)
	n := s.rb.write(src)
	wakeAll(&s.readWaiters)
	return n, 0
}

// ParkReader registers owner to be woken when data becomes available or
// the write end closes.
func (p *Pipe) ParkReader(owner any, wake func()) {
	p.shared.readWaiters = append(p.shared.readWaiters, waiter{owner: owner, wake: wake})
}

// ParkWriter registers owner to be woken when ring space frees up or
// the read end closes.
func (p *Pipe) ParkWriter(owner any, wake func()) {
	p.shared.writeWaiters = append(p.shared.writeWaiters, waiter{owner: owner, wake: wake})
}
