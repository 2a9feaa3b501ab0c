package inode

import (
	"github.com/AriathGonzalez/myfs/alloc"
	"github.com/AriathGonzalez/myfs/region"
)

// fileBlock is an accessor for one node of a file's content chain: a
// FileBlockHeaderSize-byte header (Capacity, Allocated, Next) immediately
// followed by Capacity bytes of data.
type fileBlock struct {
	r   *region.Region
	Off uint64
}

func atBlock(r *region.Region, off uint64) fileBlock {
	return fileBlock{r: r, Off: off}
}

func (b fileBlock) Capacity() uint64 {
	return b.r.ReadUint64(b.Off + region.FileBlockCapacityOff)
}

func (b fileBlock) setCapacity(n uint64) {
	b.r.WriteUint64(b.Off+region.FileBlockCapacityOff, n)
}

func (b fileBlock) Allocated() uint64 {
	return b.r.ReadUint64(b.Off + region.FileBlockAllocatedOff)
}

func (b fileBlock) SetAllocated(n uint64) {
	b.r.WriteUint64(b.Off+region.FileBlockAllocatedOff, n)
}

func (b fileBlock) Next() uint64 {
	return b.r.ReadUint64(b.Off + region.FileBlockNextOff)
}

func (b fileBlock) SetNext(off uint64) {
	b.r.WriteUint64(b.Off+region.FileBlockNextOff, off)
}

func (b fileBlock) DataOff() uint64 { return b.Off + region.FileBlockDataOff }

func (b fileBlock) span() uint64 { return region.FileBlockHeaderSize + b.Capacity() }

// File-body field accessors (within Inode.bodyBase()).

func (ino Inode) fileSize() uint64 {
	return ino.r.ReadUint64(ino.bodyBase() + region.FileBodySizeOff)
}

func (ino Inode) setFileSize(n uint64) {
	ino.r.WriteUint64(ino.bodyBase()+region.FileBodySizeOff, n)
}

func (ino Inode) firstBlock() uint64 {
	return ino.r.ReadUint64(ino.bodyBase() + region.FileBodyFirstBlockOff)
}

func (ino Inode) setFirstBlock(off uint64) {
	ino.r.WriteUint64(ino.bodyBase()+region.FileBodyFirstBlockOff, off)
}

// Size returns the file's logical length.
func (ino Inode) Size() uint64 { return ino.fileSize() }

// blockChain returns every block offset in chain order.
func (ino Inode) blockChain() []uint64 {
	var chain []uint64
	off := ino.firstBlock()
	for off != region.NullOffset {
		chain = append(chain, off)
		off = atBlock(ino.r, off).Next()
	}
	return chain
}

// Read copies min(len(buf), Size()-offset) bytes starting at offset into
// buf, walking the block chain and skipping the leading offset bytes, and
// returns the number of bytes copied. offset >= Size() yields 0 with no
// error.
func (ino Inode) Read(buf []byte, offset uint64) int {
	size := ino.fileSize()
	if offset >= size {
		return 0
	}

	toRead := size - offset
	if uint64(len(buf)) < toRead {
		toRead = uint64(len(buf))
	}

	var read uint64
	skip := offset
	off := ino.firstBlock()
	for off != region.NullOffset && read < toRead {
		b := atBlock(ino.r, off)
		have := b.Allocated()
		if skip >= have {
			skip -= have
			off = b.Next()
			continue
		}

		avail := have - skip
		want := toRead - read
		if want > avail {
			want = avail
		}
		ino.r.CopyOut(buf[read:read+want], b.DataOff()+skip)
		read += want
		skip = 0
		off = b.Next()
	}
	return int(read)
}

// Write copies data into the file starting at offset, growing the block
// chain (with zero-filled holes) if offset+len(data)
// exceeds the current size, and returns the number of bytes written. On
// allocator failure mid-grow the entire call is rolled back: no block is
// added, no byte changes, and ErrNoSpace is returned.
func (ino Inode) Write(a *alloc.Allocator, data []byte, offset uint64) (int, error) {
	required := offset + uint64(len(data))
	if required > ino.fileSize() {
		if err := ino.grow(a, required); err != nil {
			return 0, err
		}
	}

	var written uint64
	skip := offset
	off := ino.firstBlock()
	for off != region.NullOffset && written < uint64(len(data)) {
		b := atBlock(ino.r, off)
		have := b.Allocated()
		if skip >= have {
			skip -= have
			off = b.Next()
			continue
		}

		avail := have - skip
		want := uint64(len(data)) - written
		if want > avail {
			want = avail
		}
		ino.r.CopyIn(b.DataOff()+skip, data[written:written+want])
		written += want
		skip = 0
		off = b.Next()
	}
	return int(written), nil
}

// grow extends the allocated span of the block chain to cover required
// bytes, zero-filling every newly-allocated byte. It plans and allocates
// entirely before mutating any
// existing, file-visible structure, so a failure partway through leaves
// the file exactly as it was: only the final commit step, reached once
// every allocation has already succeeded, links new blocks in and advances
// the recorded size.
func (ino Inode) grow(a *alloc.Allocator, required uint64) error {
	size := ino.fileSize()
	if required <= size {
		return nil
	}
	needed := required - size

	chain := ino.blockChain()
	tailOff := uint64(region.NullOffset)
	if len(chain) > 0 {
		tailOff = chain[len(chain)-1]
	}

	tailFill := uint64(0)
	if tailOff != region.NullOffset {
		tb := atBlock(ino.r, tailOff)
		free := tb.Capacity() - tb.Allocated()
		if free > needed {
			free = needed
		}
		tailFill = free
	}
	remaining := needed - tailFill

	type planned struct {
		off      uint64
		capacity uint64
		fill     uint64
	}
	var newBlocks []planned
	rollback := func() {
		for _, p := range newBlocks {
			a.Free(p.off, region.FileBlockHeaderSize+p.capacity)
		}
	}

	for remaining > 0 {
		want := remaining
		if want > region.BlockSize {
			want = region.BlockSize
		}
		off, granted := a.Alloc(region.FileBlockHeaderSize + want)
		if off == region.NullOffset {
			rollback()
			return ErrNoSpace
		}
		capacity := granted - region.FileBlockHeaderSize

		fill := capacity
		if fill > remaining {
			fill = remaining
		}
		newBlocks = append(newBlocks, planned{off: off, capacity: capacity, fill: fill})
		remaining -= fill
	}

	// Every allocation succeeded: commit.
	if tailFill > 0 {
		tb := atBlock(ino.r, tailOff)
		ino.r.Zero(tb.DataOff()+tb.Allocated(), tailFill)
		tb.SetAllocated(tb.Allocated() + tailFill)
	}

	prevOff := tailOff
	for _, p := range newBlocks {
		ino.r.Zero(p.off, region.FileBlockHeaderSize+p.capacity)
		nb := atBlock(ino.r, p.off)
		nb.setCapacity(p.capacity)
		nb.SetAllocated(p.fill)
		nb.SetNext(region.NullOffset)

		if prevOff == region.NullOffset {
			ino.setFirstBlock(p.off)
		} else {
			atBlock(ino.r, prevOff).SetNext(p.off)
		}
		prevOff = p.off
	}

	ino.setFileSize(required)
	return nil
}

// Truncate resizes the file to newSize: growing (zero-fill only, no data
// copy) via the same path as Write, or shrinking by freeing whole trailing
// blocks and carving back the unused suffix of the block that now holds
// the new logical end.
func (ino Inode) Truncate(a *alloc.Allocator, newSize uint64) error {
	size := ino.fileSize()
	if newSize == size {
		return nil
	}
	if newSize > size {
		return ino.grow(a, newSize)
	}
	return ino.shrink(a, newSize)
}

func (ino Inode) shrink(a *alloc.Allocator, newSize uint64) error {
	if newSize == 0 {
		ino.freeChainFrom(a, ino.firstBlock())
		ino.setFirstBlock(region.NullOffset)
		ino.setFileSize(0)
		return nil
	}

	var cum uint64
	off := ino.firstBlock()
	for off != region.NullOffset {
		b := atBlock(ino.r, off)
		next := cum + b.Allocated()
		if next >= newSize {
			within := newSize - cum
			b.SetAllocated(within)

			oldSpan := b.span()
			newSpan := region.FileBlockHeaderSize + within
			if newSpan < oldSpan {
				if newOff, granted := a.Realloc(off, oldSpan, newSpan); newOff != region.NullOffset {
					atBlock(ino.r, newOff).setCapacity(granted - region.FileBlockHeaderSize)
				}
			}

			ino.freeChainFrom(a, b.Next())
			b.SetNext(region.NullOffset)
			ino.setFileSize(newSize)
			return nil
		}
		cum = next
		off = b.Next()
	}

	// Unreachable since size must never exceed the sum of allocated bytes
	// along the chain, but tolerate a short chain by simply recording the
	// new size.
	ino.setFileSize(newSize)
	return nil
}

// freeChainFrom returns every block from off to the end of the chain to
// the allocator.
func (ino Inode) freeChainFrom(a *alloc.Allocator, off uint64) {
	for off != region.NullOffset {
		b := atBlock(ino.r, off)
		next := b.Next()
		a.Free(off, region.FileBlockHeaderSize+b.Capacity())
		off = next
	}
}

// FreeChain discards the file's entire content chain, used by unlink
// before destroying the inode itself.
func (ino Inode) FreeChain(a *alloc.Allocator) {
	ino.freeChainFrom(a, ino.firstBlock())
	ino.setFirstBlock(region.NullOffset)
	ino.setFileSize(0)
}

// DebugBlockChainStats walks the file's content chain and returns the sum
// of each block's Allocated field (the quantity the logical size must
// never exceed) and the total region span the chain occupies (header
// plus capacity per block), for core's myfsdebug invariant accounting.
func (ino Inode) DebugBlockChainStats() (allocated, span uint64) {
	off := ino.firstBlock()
	for off != region.NullOffset {
		b := atBlock(ino.r, off)
		allocated += b.Allocated()
		span += b.span()
		off = b.Next()
	}
	return allocated, span
}
