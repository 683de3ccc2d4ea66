package fs

import (
	"golang.org/x/text/unicode/norm"

	"github.com/gokernel/rvos/util"
)

// NameLengthLimit is the longest file name a directory entry can hold,
// leaving one byte for the NUL terminator (§6.1).
const NameLengthLimit = 27

// DirEntSize is the fixed, flat size of one directory entry: a
// name[28] field plus a u32 inode number (§6.1), matching easy-fs's
// DIRENT_SZ.
const DirEntSize = NameLengthLimit + 1 + 4

// DirEntry is one flat directory entry.
type DirEntry struct {
	Name        string
	InodeNumber uint32
}

func encodeDirEntry(e DirEntry, buf []byte) {
	var name [NameLengthLimit + 1]byte
	copy(name[:], e.Name)
	copy(buf, name[:])
	util.Writen(buf, 4, NameLengthLimit+1, int(e.InodeNumber))
}

func decodeDirEntry(buf []byte) DirEntry {
	end := 0
	for end < NameLengthLimit+1 && buf[end] != 0 {
		end++
	}
	return DirEntry{
		Name:        string(buf[:end]),
		InodeNumber: uint32(util.Readn(buf, 4, NameLengthLimit+1)),
	}
}

// Inode is a handle to one file or directory's metadata: the file
// system it lives in, and the (block, offset) position of its
// DiskInode record (§6.1/§6.2). It holds no mutex of its own: access to
// the record is serialized by the FileSystem's mutex. It is the
// VFS-facing type fd.OSInode wraps.
type Inode struct {
	fs      *FileSystem
	blockID uint32
	offset  int
}

// RootInode returns a handle to the mounted file system's root
// directory.
func RootInode(f *FileSystem) *Inode {
	blockID, offset := f.inodePositionLocked(RootInodeID)
	return &Inode{fs: f, blockID: blockID, offset: offset}
}

func (n *Inode) withDisk(fn func(d *DiskInode) any) any {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()
	buf := n.fs.cache.Get(n.blockID)
	defer n.fs.cache.Release(buf)
	d := decodeDiskInode(buf.AtRO(n.offset)[:diskInodeSize])
	ret := fn(d)
	d.encode(buf.At(n.offset)[:diskInodeSize])
	return ret
}

// IsDir reports whether this inode is a directory.
func (n *Inode) IsDir() bool {
	return n.withDisk(func(d *DiskInode) any { return d.IsDir() }).(bool)
}

// Size returns the inode's current content size in bytes.
func (n *Inode) Size() uint32 {
	return n.withDisk(func(d *DiskInode) any { return d.Size }).(uint32)
}

func (n *Inode) findEntryLocked(d *DiskInode, name string) (DirEntry, int, bool) {
	count := int(d.Size) / DirEntSize
	buf := make([]byte, DirEntSize)
	for i := 0; i < count; i++ {
		d.ReadAt(i*DirEntSize, buf, n.fs.cache)
		e := decodeDirEntry(buf)
		if e.Name == name {
			return e, i, true
		}
	}
	return DirEntry{}, -1, false
}

// Find looks up name in this directory and returns a handle to it.
func (n *Inode) Find(name string) (*Inode, bool) {
	name = norm.NFC.String(name)
	var found *Inode
	n.withDisk(func(d *DiskInode) any {
		e, _, ok := n.findEntryLocked(d, name)
		if !ok {
			return nil
		}
		blockID, offset := n.fs.inodePositionLocked(e.InodeNumber)
		found = &Inode{fs: n.fs, blockID: blockID, offset: offset}
		return nil
	})
	return found, found != nil
}

// Ls returns the names of every entry in this directory.
func (n *Inode) Ls() []string {
	var names []string
	n.withDisk(func(d *DiskInode) any {
		count := int(d.Size) / DirEntSize
		buf := make([]byte, DirEntSize)
		for i := 0; i < count; i++ {
			d.ReadAt(i*DirEntSize, buf, n.fs.cache)
			names = append(names, decodeDirEntry(buf).Name)
		}
		return nil
	})
	return names
}

func (n *Inode) growLocked(d *DiskInode, newSize uint32) {
	if newSize <= d.Size {
		return
	}
	need := d.BlocksNumNeeded(newSize)
	blocks := make([]uint32, need)
	for i := range blocks {
		blocks[i] = n.fs.allocDataLocked()
	}
	d.IncreaseSize(newSize, blocks, n.fs.cache)
}

// Create makes a new regular file named name in this directory and
// returns its handle. It returns (nil, false) if name already exists.
// name is NFC-normalized first so that visually identical names always
// collide in findEntryLocked regardless of how the caller composed
// them (combining-character sequences vs precomposed code points).
func (n *Inode) Create(name string) (*Inode, bool) {
	name = norm.NFC.String(name)
	if len(name) > NameLengthLimit {
		panic("fs: name too long")
	}
	var created *Inode
	n.withDisk(func(d *DiskInode) any {
		if !d.IsDir() {
			panic("fs: create inside a non-directory")
		}
		if _, _, ok := n.findEntryLocked(d, name); ok {
			return nil
		}
		newID := n.fs.allocInodeLocked()
		blockID, offset := n.fs.inodePositionLocked(newID)
		buf := n.fs.cache.Get(blockID)
		nd := &DiskInode{Type: TypeFile}
		nd.encode(buf.At(offset)[:diskInodeSize])
		n.fs.cache.Release(buf)

		entCount := int(d.Size) / DirEntSize
		newSize := d.Size + DirEntSize
		n.growLocked(d, newSize)
		entBuf := make([]byte, DirEntSize)
		encodeDirEntry(DirEntry{Name: name, InodeNumber: newID}, entBuf)
		d.WriteAt(entCount*DirEntSize, entBuf, n.fs.cache)

		created = &Inode{fs: n.fs, blockID: blockID, offset: offset}
		return nil
	})
	return created, created != nil
}

// ReadAt copies content into buf starting at offset.
func (n *Inode) ReadAt(offset int, buf []byte) int {
	return n.withDisk(func(d *DiskInode) any { return d.ReadAt(offset, buf, n.fs.cache) }).(int)
}

// WriteAt writes buf into content starting at offset, growing the
// inode first if necessary, and returns the count written.
func (n *Inode) WriteAt(offset int, buf []byte) int {
	return n.withDisk(func(d *DiskInode) any {
		end := uint32(offset + len(buf))
		n.growLocked(d, max(d.Size, end))
		return d.WriteAt(offset, buf, n.fs.cache)
	}).(int)
}

// Clear truncates the file to zero length, returning every block it
// owned to the data bitmap.
func (n *Inode) Clear() {
	n.withDisk(func(d *DiskInode) any {
		for _, b := range d.ClearSize(n.fs.cache) {
			n.fs.deallocDataLocked(b)
		}
		return nil
	})
}
