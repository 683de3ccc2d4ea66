// Package fd implements component P: the file abstraction shared by
// every kind of open file descriptor (disk files, pipes, console
// stdio), grounded on the teacher's fdops package naming (biscuit's
// Fdops_i referenced throughout circbuf.go and other teacher sources
// even though fdops' own source was not retrieved) and on the
// capability style of exposing Readable/Writable rather than a mode
// bitmask, matching spec §4.10.
package fd

import (
	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/vm"
)

// File is the capability interface every open file descriptor
// implements: console stdio, on-disk files, and pipes alike.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf *vm.UserBuffer) (int, defs.Err_t)
	Write(buf *vm.UserBuffer) (int, defs.Err_t)
}

// Table is a process's open file-descriptor table: a dense slice of
// slots, recycling the lowest free index on Alloc the way a real
// fd_table implementation must for POSIX fd-number semantics.
type Table struct {
	slots []File
}

// NewTable returns an empty descriptor table.
func NewTable() *Table {
	return &Table{}
}

// Alloc installs f at the lowest free slot (or appends) and returns its
// descriptor number.
func (t *Table) Alloc(f File) defs.Fdnum_t {
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = f
			return defs.Fdnum_t(i)
		}
	}
	t.slots = append(t.slots, f)
	return defs.Fdnum_t(len(t.slots) - 1)
}

// Get returns the file at fdnum, or false if the slot is empty or out
// of range.
func (t *Table) Get(fdnum defs.Fdnum_t) (File, bool) {
	i := int(fdnum)
	if i < 0 || i >= len(t.slots) || t.slots[i] == nil {
		return nil, false
	}
	return t.slots[i], true
}

// Close clears fdnum's slot. It is a no-op if already empty.
func (t *Table) Close(fdnum defs.Fdnum_t) {
	i := int(fdnum)
	if i >= 0 && i < len(t.slots) {
		t.slots[i] = nil
	}
}

// Dup installs the same File as a new descriptor, for the dup syscall.
func (t *Table) Dup(fdnum defs.Fdnum_t) (defs.Fdnum_t, bool) {
	f, ok := t.Get(fdnum)
	if !ok {
		return 0, false
	}
	return t.Alloc(f), true
}

// Fork returns a new table sharing the same File values as t, for
// fork's fd-table inheritance semantics.
func (t *Table) Fork() *Table {
	nt := &Table{slots: make([]File, len(t.slots))}
	copy(nt.slots, t.slots)
	return nt
}
