package fd

import (
	"testing"

	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/mem"
	"github.com/gokernel/rvos/vm"
)

func userBuf(b []byte) *vm.UserBuffer {
	return vm.NewUserBuffer([][]byte{b})
}

func TestPipeWriteThenReadRoundTrip(t *testing.T) {
	alloc := mem.NewAllocator(0, 4)
	r, w := NewPipe(alloc)

	msg := []byte("hello, pipe")
	n, err := w.Write(userBuf(append([]byte(nil), msg...)))
	if err != 0 || n != len(msg) {
		t.Fatalf("Write = (%d, %v), want (%d, 0)", n, err, len(msg))
	}

	dst := make([]byte, len(msg))
	n, err = r.Read(userBuf(dst))
	if err != 0 || n != len(msg) {
		t.Fatalf("Read = (%d, %v), want (%d, 0)", n, err, len(msg))
	}
	if string(dst) != string(msg) {
		t.Fatalf("Read data = %q, want %q", dst, msg)
	}
}

func TestPipeReadOnEmptyReportsEAGAINAndParksReader(t *testing.T) {
	alloc := mem.NewAllocator(0, 4)
	r, w := NewPipe(alloc)

	n, err := r.Read(userBuf(make([]byte, 5)))
	if n != 0 || err != -defs.EAGAIN {
		t.Fatalf("Read on empty pipe = (%d, %v), want (0, -EAGAIN)", n, err)
	}

	var woke bool
	r.ParkReader(r, func() { woke = true })

	w.Write(userBuf([]byte("abcde")))
	if !woke {
		t.Fatal("Write did not wake the parked reader")
	}

	n, err = r.Read(userBuf(make([]byte, 5)))
	if n != 5 || err != 0 {
		t.Fatalf("Read retry after wake = (%d, %v), want (5, 0)", n, err)
	}
}

func TestPipeReadReturnsEOFAfterWriterCloses(t *testing.T) {
	alloc := mem.NewAllocator(0, 4)
	r, w := NewPipe(alloc)
	w.Close()

	n, err := r.Read(userBuf(make([]byte, 10)))
	if n != 0 || err != 0 {
		t.Fatalf("Read after writer close = (%d, %v), want (0, 0) for EOF", n, err)
	}
}

func TestPipeWriteReturnsEPIPEAfterReaderCloses(t *testing.T) {
	alloc := mem.NewAllocator(0, 4)
	r, w := NewPipe(alloc)
	r.Close()

	_, err := w.Write(userBuf([]byte("x")))
	if err != -defs.EPIPE {
		t.Fatalf("Write after reader close = %v, want -EPIPE", err)
	}
}

func TestPipeWriteOnFullRingReportsEAGAINAndParksWriter(t *testing.T) {
	alloc := mem.NewAllocator(0, 4)
	r, w := NewPipe(alloc)

	big := make([]byte, mem.PageSize)
	n, err := w.Write(userBuf(big))
	if err != 0 || n != mem.PageSize {
		t.Fatalf("first Write = (%d, %v), want (%d, 0)", n, err, mem.PageSize)
	}

	n, err = w.Write(userBuf([]byte("more")))
	if n != 0 || err != -defs.EAGAIN {
		t.Fatalf("Write on full ring = (%d, %v), want (0, -EAGAIN)", n, err)
	}

	var woke bool
	w.ParkWriter(w, func() { woke = true })

	dst := make([]byte, 4)
	r.Read(userBuf(dst))
	if !woke {
		t.Fatal("Read did not wake the parked writer")
	}

	n, err = w.Write(userBuf([]byte("more")))
	if n != 4 || err != 0 {
		t.Fatalf("Write retry after wake = (%d, %v), want (4, 0)", n, err)
	}
}

func TestPipeWriteReportsPartialCountWhenRingHasLessRoomThanSrc(t *testing.T) {
	alloc := mem.NewAllocator(0, 4)
	r, w := NewPipe(alloc)

	n, err := w.Write(userBuf(make([]byte, mem.PageSize-4)))
	if err != 0 || n != mem.PageSize-4 {
		t.Fatalf("setup Write = (%d, %v), want (%d, 0)", n, err, mem.PageSize-4)
	}

	n, err = w.Write(userBuf([]byte("12345678")))
	if err != 0 || n != 4 {
		t.Fatalf("Write into nearly-full ring = (%d, %v), want (4, 0) partial", n, err)
	}
	_ = r
}
