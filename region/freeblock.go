package region

// FreeBlock is an accessor for a free-list node header at a fixed offset.
// The header occupies FreeBlockHeaderSize bytes; the free payload itself —
// Remaining bytes of it — follows immediately and is never touched by
// FreeBlock itself (the allocator decides what, if anything, to do with
// it).
type FreeBlock struct {
	r   *Region
	Off uint64
}

// AtFreeBlock returns an accessor for the free block header at off.
func AtFreeBlock(r *Region, off uint64) FreeBlock {
	return FreeBlock{r: r, Off: off}
}

func (f FreeBlock) Remaining() uint64 {
	return f.r.ReadUint64(f.Off + freeBlockRemainingOff)
}

func (f FreeBlock) SetRemaining(n uint64) {
	f.r.WriteUint64(f.Off+freeBlockRemainingOff, n)
}

func (f FreeBlock) Next() uint64 {
	return f.r.ReadUint64(f.Off + freeBlockNextOff)
}

func (f FreeBlock) SetNext(off uint64) {
	f.r.WriteUint64(f.Off+freeBlockNextOff, off)
}

// PayloadOff returns the offset immediately following this free block's
// header, i.e. where its Remaining bytes of reusable space begin.
func (f FreeBlock) PayloadOff() uint64 {
	return f.Off + FreeBlockHeaderSize
}

// TotalSpan is the number of bytes this free block occupies including its
// own header: what a predecessor would need to add to its own offset to
// reach the byte immediately following this block, used for the
// contiguity check during coalescing.
func (f FreeBlock) TotalSpan() uint64 {
	return FreeBlockHeaderSize + f.Remaining()
}
