package fd

import (
	"sync"

	"github.com/gokernel/rvos/defs"
	"github.com/gokernel/rvos/fs"
	"github.com/gokernel/rvos/vm"
)

// OSInode is an open on-disk file descriptor: an fs.Inode handle plus
// the open-mode capability flags and the current read/write offset that
// the open file description (not the inode itself) owns, per §4.10 and
// §6.2's open-flag handling (O_TRUNC clears the file on open).
type OSInode struct {
	mu       sync.Mutex
	inode    *fs.Inode
	offset   int
	readable bool
	writable bool
}

// OpenInode wraps inode as an open file description with the given
// capabilities, truncating its contents first if trunc is set.
func OpenInode(inode *fs.Inode, readable, writable, trunc bool) *OSInode {
	if trunc {
		inode.Clear()
	}
	return &OSInode{inode: inode, readable: readable, writable: writable}
}

func (f *OSInode) Readable() bool { return f.readable }
func (f *OSInode) Writable() bool { return f.writable }

func (f *OSInode) Read(buf *vm.UserBuffer) (int, defs.Err_t) {
	if !f.readable {
		return 0, -defs.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := make([]byte, buf.Len())
	n := f.inode.ReadAt(f.offset, tmp)
	f.offset += n
	buf.Write(tmp[:n])
	return n, 0
}

func (f *OSInode) Write(buf *vm.UserBuffer) (int, defs.Err_t) {
	if !f.writable {
		return 0, -defs.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := make([]byte, buf.Len())
	buf.Read(tmp)
	n := f.inode.WriteAt(f.offset, tmp)
	f.offset += n
	return n, 0
}
