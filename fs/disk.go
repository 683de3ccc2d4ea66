// Package fs implements components M, N, and O: the on-disk block
// device file system, grounded on easy-fs (original_source/easy-fs/src)
// and expressed in the teacher's per-concern-file layout (one file per
// subsystem: disk.go, blockcache.go, bitmap.go, layout.go, inode.go,
// dir.go).
package fs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// BlockSize is the fixed block size this file system uses throughout
// (§6.1), matching easy-fs's BLOCK_SZ.
const BlockSize = 512

// BlockDevice is anything that can read and write whole fixed-size
// blocks by number, the same narrow interface easy-fs's block_dev.rs
// defines, so that the rest of the package never depends on how blocks
// are actually stored.
type BlockDevice interface {
	ReadBlock(id uint32, buf []byte)
	WriteBlock(id uint32, buf []byte)
}

// FileDisk is a BlockDevice backed by a single host file, using
// pread/pwrite (via golang.org/x/sys/unix) instead of Go's
// os.File.ReadAt/WriteAt so that every access goes through one explicit
// syscall per block the way a real block device driver would, rather
// than through Go's buffered file abstraction.
type FileDisk struct {
	fd int
}

// OpenFileDisk opens (or creates) path as the backing store for a
// FileDisk. truncateBlocks, if non-zero, sets the file's length in
// blocks, used by mkfs to preallocate the disk image.
func OpenFileDisk(path string, truncateBlocks uint32) (*FileDisk, error) {
	fd, err := unix.Open(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("fs: open disk image %s: %w", path, err)
	}
	d := &FileDisk{fd: fd}
	if truncateBlocks != 0 {
		if err := unix.Ftruncate(fd, int64(truncateBlocks)*BlockSize); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("fs: truncate disk image: %w", err)
		}
	}
	return d, nil
}

// ReadBlock reads block id into buf, which must be exactly BlockSize
// bytes.
func (d *FileDisk) ReadBlock(id uint32, buf []byte) {
	if len(buf) != BlockSize {
		panic("fs: ReadBlock buffer is not one block long")
	}
	n, err := unix.Pread(d.fd, buf, int64(id)*BlockSize)
	if err != nil {
		panic(fmt.Sprintf("fs: pread block %d: %v", id, err))
	}
	if n != BlockSize {
		panic(fmt.Sprintf("fs: short read of block %d: got %d bytes", id, n))
	}
}

// WriteBlock writes buf (exactly BlockSize bytes) to block id.
func (d *FileDisk) WriteBlock(id uint32, buf []byte) {
	if len(buf) != BlockSize {
		panic("fs: WriteBlock buffer is not one block long")
	}
	n, err := unix.Pwrite(d.fd, buf, int64(id)*BlockSize)
	if err != nil {
		panic(fmt.Sprintf("fs: pwrite block %d: %v", id, err))
	}
	if n != BlockSize {
		panic(fmt.Sprintf("fs: short write of block %d: wrote %d bytes", id, n))
	}
}

// Close closes the backing file descriptor.
func (d *FileDisk) Close() error {
	return unix.Close(d.fd)
}
