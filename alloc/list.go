package alloc

import "github.com/AriathGonzalez/myfs/region"

// walk visits every free-list node offset in ascending order.
func (a *Allocator) walk(fn func(off uint64)) {
	off := a.sb.FreeHead()
	for off != region.NullOffset {
		fn(off)
		off = region.AtFreeBlock(a.r, off).Next()
	}
}

// bestFit returns the predecessor offset (0 if the match is the head) and
// the offset of the smallest free block whose total span is >= need,
// breaking ties toward the lowest offset by never replacing an
// equally-sized earlier candidate. Returns (0, 0) if nothing fits.
func (a *Allocator) bestFit(need uint64) (prevOff, bestOff uint64) {
	var bestPrev uint64
	var bestSpan uint64
	found := false

	prev := uint64(region.NullOffset)
	off := a.sb.FreeHead()
	for off != region.NullOffset {
		span := region.AtFreeBlock(a.r, off).TotalSpan()
		if span >= need && (!found || span < bestSpan) {
			found = true
			bestSpan = span
			bestOff = off
			bestPrev = prev
		}
		prev = off
		off = region.AtFreeBlock(a.r, off).Next()
	}

	if !found {
		return region.NullOffset, region.NullOffset
	}
	return bestPrev, bestOff
}

// findExact reports whether a free block exists at exactly off, along with
// its predecessor in the list (0 if off is the head).
func (a *Allocator) findExact(off uint64) (prevOff uint64, ok bool) {
	prev := uint64(region.NullOffset)
	cur := a.sb.FreeHead()
	for cur != region.NullOffset {
		if cur == off {
			return prev, true
		}
		prev = cur
		cur = region.AtFreeBlock(a.r, cur).Next()
	}
	return region.NullOffset, false
}

// unlink removes the node at off from the list, given its predecessor
// (region.NullOffset if off is the current head).
func (a *Allocator) unlink(prevOff, off uint64) {
	next := region.AtFreeBlock(a.r, off).Next()
	if prevOff == region.NullOffset {
		a.sb.SetFreeHead(next)
	} else {
		region.AtFreeBlock(a.r, prevOff).SetNext(next)
	}
}

// splitOrRemove carves `need` bytes off the front of the free block at
// blockOff (whose predecessor is prevOff), leaving a smaller free block in
// its place when the residual is large enough to remain a valid free
// node, or removing it entirely otherwise: if the residual is less than
// sizeof(free_block_header) + 1, the entire free block is consumed.
func (a *Allocator) splitOrRemove(prevOff, blockOff, need uint64) uint64 {
	fb := region.AtFreeBlock(a.r, blockOff)
	span := fb.TotalSpan()
	next := fb.Next()
	residual := span - need

	if residual < region.FreeBlockHeaderSize+1 {
		a.unlink(prevOff, blockOff)
		return span
	}

	newOff := blockOff + need
	newBlock := region.AtFreeBlock(a.r, newOff)
	newBlock.SetRemaining(residual - region.FreeBlockHeaderSize)
	newBlock.SetNext(next)

	if prevOff == region.NullOffset {
		a.sb.SetFreeHead(newOff)
	} else {
		region.AtFreeBlock(a.r, prevOff).SetNext(newOff)
	}
	return need
}

// insertFree inserts a newly-freed span of `span` total bytes starting at
// offset into the sorted free list, eagerly coalescing with the
// immediately previous and/or next free block if contiguous, keeping the
// list strictly ascending with no two adjacent free blocks left uncoalesced.
func (a *Allocator) insertFree(offset, span uint64) {
	prev := uint64(region.NullOffset)
	cur := a.sb.FreeHead()
	for cur != region.NullOffset && cur < offset {
		prev = cur
		cur = region.AtFreeBlock(a.r, cur).Next()
	}

	mergedWithPrev := false
	if prev != region.NullOffset {
		prevBlock := region.AtFreeBlock(a.r, prev)
		if prev+prevBlock.TotalSpan() == offset {
			mergedWithPrev = true
		}
	}

	mergedWithNext := false
	if cur != region.NullOffset && offset+span == cur {
		mergedWithNext = true
	}

	switch {
	case mergedWithPrev && mergedWithNext:
		prevBlock := region.AtFreeBlock(a.r, prev)
		curBlock := region.AtFreeBlock(a.r, cur)
		prevBlock.SetRemaining(prevBlock.Remaining() + span + curBlock.TotalSpan())
		prevBlock.SetNext(curBlock.Next())

	case mergedWithPrev:
		prevBlock := region.AtFreeBlock(a.r, prev)
		prevBlock.SetRemaining(prevBlock.Remaining() + span)

	case mergedWithNext:
		curBlock := region.AtFreeBlock(a.r, cur)
		newBlock := region.AtFreeBlock(a.r, offset)
		newBlock.SetRemaining(span - region.FreeBlockHeaderSize + curBlock.TotalSpan())
		newBlock.SetNext(curBlock.Next())
		a.linkAfter(prev, offset)

	default:
		newBlock := region.AtFreeBlock(a.r, offset)
		newBlock.SetRemaining(span - region.FreeBlockHeaderSize)
		newBlock.SetNext(cur)
		a.linkAfter(prev, offset)
	}
}

// linkAfter points prev's Next at off (or sets the list head, if prev is
// region.NullOffset).
func (a *Allocator) linkAfter(prevOff, off uint64) {
	if prevOff == region.NullOffset {
		a.sb.SetFreeHead(off)
	} else {
		region.AtFreeBlock(a.r, prevOff).SetNext(off)
	}
}
