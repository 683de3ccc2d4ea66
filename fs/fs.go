package fs

import (
	"fmt"
	"sync"

	"github.com/gokernel/rvos/limits"
)

// FileSystem is the mounted easy-fs-style volume: the super block plus
// the inode/data bitmaps and the block cache they share, matching
// easy-fs's EasyFileSystem (§6.1).
type FileSystem struct {
	mu sync.Mutex

	dev   BlockDevice
	cache *BlockCache

	super SuperBlock

	inodeBitmap *Bitmap
	dataBitmap  *Bitmap

	inodeAreaStart uint32
	dataAreaStart  uint32
}

// Create formats a fresh file system of totalBlocks blocks onto dev,
// sizing the inode area to hold every inode the inode bitmap can track
// (4096 per bitmap block, 128 bytes each) and giving what is left, less
// the data bitmap, to the data area (easy-fs's own create() uses the same inodeBitmapBlocks-drives-
// inodeAreaBlocks-drives-everything-else ordering).
func Create(dev BlockDevice, totalBlocks uint32, inodeBitmapBlocks uint32) *FileSystem {
	cache := NewBlockCache(dev)

	inodeBitmap := NewBitmap(1, int(inodeBitmapBlocks))
	inodeNum := inodeBitmap.Maximum()
	inodeAreaBlocks := uint32(util_ceilDiv(inodeNum*diskInodeSize, BlockSize))
	inodeTotalBlocks := inodeBitmapBlocks + inodeAreaBlocks

	dataTotalBlocks := totalBlocks - 1 - inodeTotalBlocks
	dataBitmapBlocks := dataTotalBlocks/(4096+1) + 1
	dataAreaBlocks := dataTotalBlocks - dataBitmapBlocks

	fsys := &FileSystem{
		dev:            dev,
		cache:          cache,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     NewBitmap(1+inodeTotalBlocks, int(dataBitmapBlocks)),
		inodeAreaStart: 1 + inodeBitmapBlocks,
		dataAreaStart:  1 + inodeTotalBlocks + dataBitmapBlocks,
	}
	fsys.super = SuperBlock{
		Magic:             efsMagic,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  dataBitmapBlocks,
		DataAreaBlocks:    dataAreaBlocks,
	}

	for i := uint32(0); i < totalBlocks; i++ {
		buf := cache.Get(i)
		b := buf.At(0)
		for j := range b[:BlockSize] {
			b[j] = 0
		}
		cache.Release(buf)
	}

	sbBuf := cache.Get(0)
	fsys.super.encode(sbBuf.At(0))
	cache.Release(sbBuf)

	rootID := fsys.allocInodeLocked()
	if rootID != 0 {
		panic("fs: root inode must be id 0")
	}
	blockID, offset := fsys.inodePositionLocked(rootID)
	buf := cache.Get(blockID)
	root := &DiskInode{Type: TypeDirectory}
	root.encode(buf.At(offset)[:diskInodeSize])
	cache.Release(buf)

	fsys.SyncAll()
	return fsys
}

// util_ceilDiv avoids importing the generic util.CeilDiv for plain ints
// here since Create mixes int and uint32 arithmetic freely.
func util_ceilDiv(a, b int) int { return (a + b - 1) / b }

// Open mounts an existing file system image, validating the super
// block's magic number.
func Open(dev BlockDevice) (*FileSystem, error) {
	cache := NewBlockCache(dev)
	buf := cache.Get(0)
	sb := decodeSuperBlock(buf.AtRO(0))
	cache.Release(buf)
	if !sb.IsValid() {
		return nil, fmt.Errorf("fs: bad super block magic %#x", sb.Magic)
	}
	inodeTotalBlocks := sb.InodeBitmapBlocks + sb.InodeAreaBlocks
	return &FileSystem{
		dev:            dev,
		cache:          cache,
		super:          *sb,
		inodeBitmap:    NewBitmap(1, int(sb.InodeBitmapBlocks)),
		dataBitmap:     NewBitmap(1+inodeTotalBlocks, int(sb.DataBitmapBlocks)),
		inodeAreaStart: 1 + sb.InodeBitmapBlocks,
		dataAreaStart:  1 + inodeTotalBlocks + sb.DataBitmapBlocks,
	}, nil
}

// RootInodeID is the fixed inode number of the file system root
// directory, always the first inode allocated by Create.
const RootInodeID = 0

func (f *FileSystem) inodePositionLocked(id uint32) (blockID uint32, offset int) {
	perBlock := uint32(BlockSize / diskInodeSize)
	blockID = f.inodeAreaStart + id/perBlock
	offset = int(id%perBlock) * diskInodeSize
	return
}

func (f *FileSystem) allocInodeLocked() uint32 {
	id := f.inodeBitmap.Alloc(f.cache)
	if id < 0 {
		panic("fs: out of inodes")
	}
	if !limits.Syslimit.Fds.Take() {
		panic("fs: system-wide fd/inode limit exhausted")
	}
	return uint32(id)
}

func (f *FileSystem) allocDataLocked() uint32 {
	id := f.dataBitmap.Alloc(f.cache)
	if id < 0 {
		panic("fs: out of data blocks")
	}
	return uint32(id) + f.dataAreaStart
}

func (f *FileSystem) deallocDataLocked(blockID uint32) {
	buf := f.cache.Get(blockID)
	b := buf.At(0)
	for i := range b[:BlockSize] {
		b[i] = 0
	}
	f.cache.Release(buf)
	f.dataBitmap.Dealloc(f.cache, int(blockID-f.dataAreaStart))
}

// SyncAll flushes every dirty cached block to the underlying device.
func (f *FileSystem) SyncAll() error {
	return f.cache.SyncAll()
}
