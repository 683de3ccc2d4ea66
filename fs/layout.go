package fs

import (
	"github.com/gokernel/rvos/util"
)

// efsMagic sanity-checks a mounted super block (§6.1).
const efsMagic = 0x3b800001

// SuperBlock is the on-disk layout of block 0: the magic number and the
// block counts of each region (inode bitmap, inode area, data bitmap,
// data area), matching easy-fs's SuperBlock exactly.
type SuperBlock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapBlocks uint32
	InodeAreaBlocks   uint32
	DataBitmapBlocks  uint32
	DataAreaBlocks    uint32
}

const superBlockSize = 6 * 4

func (sb *SuperBlock) encode(buf []byte) {
	util.Writen(buf, 4, 0, int(sb.Magic))
	util.Writen(buf, 4, 4, int(sb.TotalBlocks))
	util.Writen(buf, 4, 8, int(sb.InodeBitmapBlocks))
	util.Writen(buf, 4, 12, int(sb.InodeAreaBlocks))
	util.Writen(buf, 4, 16, int(sb.DataBitmapBlocks))
	util.Writen(buf, 4, 20, int(sb.DataAreaBlocks))
}

func decodeSuperBlock(buf []byte) *SuperBlock {
	return &SuperBlock{
		Magic:             uint32(util.Readn(buf, 4, 0)),
		TotalBlocks:       uint32(util.Readn(buf, 4, 4)),
		InodeBitmapBlocks: uint32(util.Readn(buf, 4, 8)),
		InodeAreaBlocks:   uint32(util.Readn(buf, 4, 12)),
		DataBitmapBlocks:  uint32(util.Readn(buf, 4, 16)),
		DataAreaBlocks:    uint32(util.Readn(buf, 4, 20)),
	}
}

// IsValid reports whether the magic number matches.
func (sb *SuperBlock) IsValid() bool { return sb.Magic == efsMagic }

// DiskInodeType distinguishes a regular file from a directory (§6.1).
type DiskInodeType uint32

const (
	TypeFile DiskInodeType = iota
	TypeDirectory
)

// Direct/indirect block-map geometry (§6.1): 28 direct pointers, a
// single indirect1 block of 128 pointers, and an indirect2 block
// pointing to 128 indirect1 blocks for up to 128*128 more pointers.
const (
	DirectCount    = 28
	Indirect1Count = BlockSize / 4 // 128
	Indirect2Count = Indirect1Count * Indirect1Count
	DirectBound    = DirectCount
	Indirect1Bound = DirectBound + Indirect1Count
)

// diskInodeSize is 4 (size) + 28*4 (direct) + 4 (indirect1) + 4
// (indirect2) + 4 (type) = 128 bytes, so four inodes pack exactly into
// one 512-byte block, matching easy-fs's layout comment.
const diskInodeSize = 4 + DirectCount*4 + 4 + 4 + 4

// DiskInode is the 128-byte on-disk inode record (§6.1).
type DiskInode struct {
	Size      uint32
	Direct    [DirectCount]uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      DiskInodeType
}

func diskInodeOffset(innerID int) int { return innerID * diskInodeSize }

func decodeDiskInode(buf []byte) *DiskInode {
	d := &DiskInode{}
	d.Size = uint32(util.Readn(buf, 4, 0))
	for i := 0; i < DirectCount; i++ {
		d.Direct[i] = uint32(util.Readn(buf, 4, 4+4*i))
	}
	d.Indirect1 = uint32(util.Readn(buf, 4, 4+4*DirectCount))
	d.Indirect2 = uint32(util.Readn(buf, 4, 8+4*DirectCount))
	d.Type = DiskInodeType(util.Readn(buf, 4, 12+4*DirectCount))
	return d
}

func (d *DiskInode) encode(buf []byte) {
	util.Writen(buf, 4, 0, int(d.Size))
	for i := 0; i < DirectCount; i++ {
		util.Writen(buf, 4, 4+4*i, int(d.Direct[i]))
	}
	util.Writen(buf, 4, 4+4*DirectCount, int(d.Indirect1))
	util.Writen(buf, 4, 8+4*DirectCount, int(d.Indirect2))
	util.Writen(buf, 4, 12+4*DirectCount, int(d.Type))
}

// IsDir reports whether this inode is a directory.
func (d *DiskInode) IsDir() bool { return d.Type == TypeDirectory }

// DataBlocks returns the number of content blocks currently addressed,
// ceil(size / BlockSize).
func (d *DiskInode) DataBlocks() uint32 {
	return dataBlocksFor(d.Size)
}

func dataBlocksFor(size uint32) uint32 {
	return util.CeilDiv(size, uint32(BlockSize))
}

// TotalBlocks returns the number of blocks needed to hold size bytes of
// content, including any indirect1/indirect2 index blocks themselves.
func TotalBlocks(size uint32) uint32 {
	data := int(dataBlocksFor(size))
	total := data
	if data > DirectCount {
		total++
	}
	if data > Indirect1Bound {
		total++
		total += util.CeilDiv(data-Indirect1Bound, Indirect1Count)
	}
	return uint32(total)
}

// BlocksNumNeeded returns how many additional blocks must be allocated
// to grow from the inode's current size to newSize.
func (d *DiskInode) BlocksNumNeeded(newSize uint32) uint32 {
	return TotalBlocks(newSize) - TotalBlocks(d.Size)
}
