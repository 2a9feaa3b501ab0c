// Package alloc implements the first-fit/best-fit free-space allocator
// that carves usable regions out of the mmap'd area: Alloc, Free, Realloc,
// and the preferred-neighbour extend used to grow a directory's children
// array in place.
//
// The allocator is the one place in the module that is allowed to walk the
// free list; every other package goes through Allocator's exported methods
// rather than touching region.FreeBlock directly.
package alloc

import (
	"github.com/AriathGonzalez/myfs/region"
)

// Allocator carves and reclaims space inside a Region, maintaining a
// sorted, eagerly-coalesced free list. It holds no state beyond a Region
// and a Superblock accessor: a fresh Allocator may be constructed on every
// call without losing anything.
type Allocator struct {
	r  *region.Region
	sb region.Superblock
}

// New returns an Allocator operating over the free list rooted at sb's
// FreeHead field.
func New(r *region.Region, sb region.Superblock) *Allocator {
	return &Allocator{r: r, sb: sb}
}

// effectiveSize rounds a requested payload size up to the minimum that
// guarantees the resulting block, once it exists, can later host a free
// block header in place: payloads are rounded up to a minimum that
// accommodates a future free-block header.
func effectiveSize(size uint64) uint64 {
	if size < region.FreeBlockHeaderSize {
		return region.FreeBlockHeaderSize
	}
	return size
}

// Bootstrap lays down the single free block spanning [freeStart, regionEnd)
// and points the superblock's free list head at it. Called once, by
// core.Open, when mounting a region whose magic is absent.
func Bootstrap(r *region.Region, sb region.Superblock, freeStart uint64) {
	remaining := r.Size() - freeStart - region.FreeBlockHeaderSize
	fb := region.AtFreeBlock(r, freeStart)
	fb.SetRemaining(remaining)
	fb.SetNext(region.NullOffset)
	sb.SetFreeHead(freeStart)
}

// Alloc returns the offset of a freshly usable payload region of at least
// size bytes, chosen by best-fit among the free list (ties broken by
// lowest offset), or 0 if no single free block is large enough. The second
// return is the actual number of bytes reserved for the caller, which can
// exceed size by up to FreeBlockHeaderSize when the leftover residual was
// too small to stand on its own as a free node and was folded into this
// allocation instead. Callers that track their own capacity
// field (file blocks, children arrays) must record this value, not size,
// or a later Free/Realloc will leak the difference.
func (a *Allocator) Alloc(size uint64) (offset, granted uint64) {
	return a.alloc(size, region.NullOffset)
}

// AllocPreferred behaves like Alloc, but first tries the free block that
// starts exactly at preferredNeighbour (typically the offset just past an
// existing allocation): if that block is in the free list and can fully
// satisfy the request by itself, the allocation is carved from it and
// preferredNeighbour is returned. The directory children array does not
// call this; it grows through Realloc, which makes the same extend via
// ExtendIntoNeighbour.
func (a *Allocator) AllocPreferred(size uint64, preferredNeighbour uint64) (offset, granted uint64) {
	return a.alloc(size, preferredNeighbour)
}

func (a *Allocator) alloc(size uint64, preferredNeighbour uint64) (offset, granted uint64) {
	need := effectiveSize(size)

	if preferredNeighbour != region.NullOffset {
		if g, ok := a.tryExtendNeighbour(preferredNeighbour, need); ok {
			return preferredNeighbour, g
		}
	}

	prevOff, bestOff := a.bestFit(need)
	if bestOff == region.NullOffset {
		return region.NullOffset, 0
	}

	g := a.splitOrRemove(prevOff, bestOff, need)
	return bestOff, g
}

// ExtendIntoNeighbour attempts to grow the allocation that ends at
// boundaryOff (i.e. a block whose data area spans up to, but not
// including, boundaryOff) by absorbing the free block that starts exactly
// there, provided that free block alone can satisfy extra additional
// bytes. It returns the number of bytes actually granted (which may
// exceed extra when the neighbour's small residual would not itself form
// a valid free node and is folded in instead — see splitOrRemove) and
// whether the extension succeeded; callers MUST record the granted
// amount, not the requested one, as the true size of their block's tail,
// or a later Free/Realloc of that block will leak the excess.
func (a *Allocator) ExtendIntoNeighbour(boundaryOff uint64, extra uint64) (granted uint64, ok bool) {
	prevOff, exact := a.findExact(boundaryOff)
	if !exact {
		return 0, false
	}

	fb := region.AtFreeBlock(a.r, boundaryOff)
	span := fb.TotalSpan()
	if span < extra {
		return 0, false
	}

	return a.splitOrRemove(prevOff, boundaryOff, extra), true
}

func (a *Allocator) tryExtendNeighbour(neighbourDataEnd uint64, need uint64) (granted uint64, ok bool) {
	return a.ExtendIntoNeighbour(neighbourDataEnd, need)
}

// Free returns the block of the given size (as originally passed to Alloc
// or Realloc) whose payload begins at offset to the free list, eagerly
// merging with the immediately previous and/or next free block if
// contiguous.
func (a *Allocator) Free(offset uint64, size uint64) {
	span := effectiveSize(size)
	a.insertFree(offset, span)
}

// Realloc resizes the allocation at offset (of oldSize bytes) to newSize,
// following one of three cases: shrink in place (freeing the
// carved-off tail), grow in place by extending into the immediately
// following free block, or relocate via alloc+copy+free. It returns the
// (possibly unchanged) offset and the actual number of bytes granted —
// which, as with Alloc, callers with their own capacity bookkeeping must
// record instead of newSize — or (0, 0) if a relocation was required but no
// space was available, in which case the original allocation at offset is
// left untouched.
func (a *Allocator) Realloc(offset, oldSize, newSize uint64) (newOffset, granted uint64) {
	oldSpan := effectiveSize(oldSize)
	newSpan := effectiveSize(newSize)

	if newSpan <= oldSpan {
		tailSpan := oldSpan - newSpan
		if tailSpan >= region.FreeBlockHeaderSize {
			a.insertFree(offset+newSpan, tailSpan)
			return offset, newSpan
		}
		return offset, oldSpan
	}

	extra := newSpan - oldSpan
	if g, ok := a.ExtendIntoNeighbour(offset+oldSpan, extra); ok {
		return offset, oldSpan + g
	}

	newOff, g := a.Alloc(newSize)
	if newOff == region.NullOffset {
		return region.NullOffset, 0
	}

	src := a.r.MustSlice(offset, oldSize)
	dst := a.r.MustSlice(newOff, oldSize)
	copy(dst, src)

	a.Free(offset, oldSize)
	return newOff, g
}

// MaxFreeChunk reports the size of the largest single free block's total
// span, used to precheck large allocations and to implement statfs.
func (a *Allocator) MaxFreeChunk() uint64 {
	var max uint64
	a.walk(func(off uint64) {
		span := region.AtFreeBlock(a.r, off).TotalSpan()
		if span > max {
			max = span
		}
	})
	return max
}

// Stats summarises the free list for statfs and for property tests.
type Stats struct {
	FreeBytes      uint64 // sum of free blocks' total span (header + payload)
	FreeBlockCount uint64
	LargestFree    uint64
}

func (a *Allocator) Stats() Stats {
	var s Stats
	a.walk(func(off uint64) {
		span := region.AtFreeBlock(a.r, off).TotalSpan()
		s.FreeBytes += span
		s.FreeBlockCount++
		if span > s.LargestFree {
			s.LargestFree = span
		}
	})
	return s
}

// FreeSpan describes one node of the free list, in list order.
type FreeSpan struct {
	Offset uint64
	Span   uint64 // total span including the node's own header
}

// DebugFreeList returns every free-list node in ascending list order. It
// exists for core's myfsdebug invariant checks and is never called from
// the Alloc/Free/Realloc hot path.
func (a *Allocator) DebugFreeList() []FreeSpan {
	var out []FreeSpan
	a.walk(func(off uint64) {
		out = append(out, FreeSpan{Offset: off, Span: region.AtFreeBlock(a.r, off).TotalSpan()})
	})
	return out
}
