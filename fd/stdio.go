package fd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/vm"
)

// Stdin is the console input file descriptor, backed by the host
// process's own stdin since this teaching kernel has no virtual
// console device of its own (§4.10 "console stdio files").
type Stdin struct {
	r *bufio.Reader
}

// NewStdin wraps os.Stdin.
func NewStdin() *Stdin { return &Stdin{r: bufio.NewReader(os.Stdin)} }

func (s *Stdin) Readable() bool { return true }
func (s *Stdin) Writable() bool { return false }

func (s *Stdin) Read(buf *vm.UserBuffer) (int, defs.Err_t) {
	tmp := make([]byte, buf.Len())
	n, err := s.r.Read(tmp)
	if n == 0 && err != nil {
		return 0, 0 // EOF reads as zero bytes, not an error
	}
	buf.Write(tmp[:n])
	return n, 0
}

func (s *Stdin) Write(*vm.UserBuffer) (int, defs.Err_t) {
	return 0, -defs.EBADF
}

// Stdout is the console output file descriptor, backed by the host
// process's own stdout.
type Stdout struct{}

// NewStdout returns a Stdout file.
func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Readable() bool { return false }
func (s *Stdout) Writable() bool { return true }

func (s *Stdout) Read(*vm.UserBuffer) (int, defs.Err_t) {
	return 0, -defs.EBADF
}

func (s *Stdout) Write(buf *vm.UserBuffer) (int, defs.Err_t) {
	tmp := make([]byte, buf.Len())
	buf.Read(tmp)
	fmt.Fprint(os.Stdout, string(tmp))
	return len(tmp), 0
}
