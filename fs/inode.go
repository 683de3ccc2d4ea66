package fs

import "github.com/gokernel/rvos/util"

func readIndirectEntry(cache *BlockCache, blockID uint32, index int) uint32 {
	buf := cache.Get(blockID)
	defer cache.Release(buf)
	return uint32(util.Readn(buf.AtRO(0), 4, index*4))
}

func writeIndirectEntry(cache *BlockCache, blockID uint32, index int, value uint32) {
	buf := cache.Get(blockID)
	defer cache.Release(buf)
	util.Writen(buf.At(0), 4, index*4, int(value))
}

// GetBlockID translates a logical block index within the file's content
// into a physical block number, walking the indirect1/indirect2 index
// blocks as needed (§6.1), mirroring easy-fs's DiskInode::get_block_id.
func (d *DiskInode) GetBlockID(cache *BlockCache, innerID uint32) uint32 {
	i := int(innerID)
	switch {
	case i < DirectCount:
		return d.Direct[i]
	case i < Indirect1Bound:
		return readIndirectEntry(cache, d.Indirect1, i-DirectCount)
	default:
		last := i - Indirect1Bound
		indirect1 := readIndirectEntry(cache, d.Indirect2, last/Indirect1Count)
		return readIndirectEntry(cache, indirect1, last%Indirect1Count)
	}
}

// IncreaseSize grows the inode to newSize, consuming newBlocks (freshly
// allocated physical block numbers, in the order easy-fs expects: direct
// slots first, then the indirect1 index block plus its entries, then
// the indirect2 index block plus its own chain of indirect1 blocks and
// their entries).
func (d *DiskInode) IncreaseSize(newSize uint32, newBlocks []uint32, cache *BlockCache) {
	current := d.DataBlocks()
	d.Size = newSize
	total := d.DataBlocks()
	next := 0
	take := func() uint32 { v := newBlocks[next]; next++; return v }

	for current < min(total, uint32(DirectCount)) {
		d.Direct[current] = take()
		current++
	}
	if total <= DirectCount {
		return
	}
	if current == DirectCount {
		d.Indirect1 = take()
	}
	current -= DirectCount
	total -= DirectCount

	buf := cache.Get(d.Indirect1)
	for current < min(total, uint32(Indirect1Count)) {
		util.Writen(buf.At(0), 4, int(current)*4, int(take()))
		current++
	}
	cache.Release(buf)

	if total <= Indirect1Count {
		return
	}
	if current == Indirect1Count {
		d.Indirect2 = take()
	}
	current -= Indirect1Count
	total -= Indirect1Count

	a0, b0 := int(current)/Indirect1Count, int(current)%Indirect1Count
	a1, b1 := int(total)/Indirect1Count, int(total)%Indirect1Count
	for a0 < a1 || (a0 == a1 && b0 < b1) {
		if b0 == 0 {
			writeIndirectEntry(cache, d.Indirect2, a0, take())
		}
		group := readIndirectEntry(cache, d.Indirect2, a0)
		writeIndirectEntry(cache, group, b0, take())
		b0++
		if b0 == Indirect1Count {
			b0 = 0
			a0++
		}
	}
}

// ClearSize resets the inode to empty and returns every physical block
// number it owned (content blocks plus index blocks), for the caller to
// hand back to the data bitmap.
func (d *DiskInode) ClearSize(cache *BlockCache) []uint32 {
	var freed []uint32
	dataBlocks := int(d.DataBlocks())
	d.Size = 0
	current := 0

	for current < min(dataBlocks, DirectCount) {
		freed = append(freed, d.Direct[current])
		d.Direct[current] = 0
		current++
	}
	if dataBlocks <= DirectCount {
		return freed
	}
	freed = append(freed, d.Indirect1)
	dataBlocks -= DirectCount
	current = 0

	buf := cache.Get(d.Indirect1)
	for current < min(dataBlocks, Indirect1Count) {
		freed = append(freed, uint32(util.Readn(buf.AtRO(0), 4, current*4)))
		current++
	}
	cache.Release(buf)
	d.Indirect1 = 0

	if dataBlocks <= Indirect1Count {
		return freed
	}
	freed = append(freed, d.Indirect2)
	dataBlocks -= Indirect1Count

	a1, b1 := dataBlocks/Indirect1Count, dataBlocks%Indirect1Count
	for a := 0; a < a1; a++ {
		group := readIndirectEntry(cache, d.Indirect2, a)
		freed = append(freed, group)
		gbuf := cache.Get(group)
		for i := 0; i < Indirect1Count; i++ {
			freed = append(freed, uint32(util.Readn(gbuf.AtRO(0), 4, i*4)))
		}
		cache.Release(gbuf)
	}
	if b1 > 0 {
		group := readIndirectEntry(cache, d.Indirect2, a1)
		freed = append(freed, group)
		gbuf := cache.Get(group)
		for i := 0; i < b1; i++ {
			freed = append(freed, uint32(util.Readn(gbuf.AtRO(0), 4, i*4)))
		}
		cache.Release(gbuf)
	}
	d.Indirect2 = 0
	return freed
}

// ReadAt copies min(len(buf), size-offset) bytes starting at offset
// into buf and returns the count read.
func (d *DiskInode) ReadAt(offset int, buf []byte, cache *BlockCache) int {
	end := min(offset+len(buf), int(d.Size))
	if offset >= end {
		return 0
	}
	start := offset
	startBlock := start / BlockSize
	read := 0
	for {
		endCurrent := min((start/BlockSize+1)*BlockSize, end)
		want := endCurrent - start
		b := cache.Get(d.GetBlockID(cache, uint32(startBlock)))
		copy(buf[read:read+want], b.AtRO(0)[start%BlockSize:start%BlockSize+want])
		cache.Release(b)
		read += want
		if endCurrent == end {
			break
		}
		startBlock++
		start = endCurrent
	}
	return read
}

// WriteAt copies min(len(buf), size-offset) bytes from buf into the
// inode's content starting at offset. The caller must have already
// grown the inode (via IncreaseSize) to cover the write range.
func (d *DiskInode) WriteAt(offset int, buf []byte, cache *BlockCache) int {
	end := min(offset+len(buf), int(d.Size))
	start := offset
	startBlock := start / BlockSize
	written := 0
	for start < end {
		endCurrent := min((start/BlockSize+1)*BlockSize, end)
		want := endCurrent - start
		b := cache.Get(d.GetBlockID(cache, uint32(startBlock)))
		copy(b.At(0)[start%BlockSize:start%BlockSize+want], buf[written:written+want])
		cache.Release(b)
		written += want
		startBlock++
		start = endCurrent
	}
	return written
}
