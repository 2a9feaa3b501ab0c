package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AriathGonzalez/myfs/region"
)

const testFreeStart = region.SuperblockSize

func newTestAllocator(t *testing.T, size uint64) (*region.Region, region.Superblock, *Allocator) {
	t.Helper()
	r := region.New(make([]byte, size))
	sb := region.LoadSuperblock(r)
	Bootstrap(r, sb, testFreeStart)
	return r, sb, New(r, sb)
}

func TestAllocBasic(t *testing.T) {
	_, _, a := newTestAllocator(t, 4096)

	off, granted := a.Alloc(100)
	require.NotEqual(t, uint64(region.NullOffset), off)
	assert.GreaterOrEqual(t, granted, uint64(100))
}

func TestAllocExhaustion(t *testing.T) {
	_, _, a := newTestAllocator(t, 256)

	off, _ := a.Alloc(10000)
	assert.Equal(t, uint64(region.NullOffset), off, "a request larger than the region must fail, not panic")
}

func TestFreeAndReallocCanReuseSpace(t *testing.T) {
	_, _, a := newTestAllocator(t, 4096)

	off1, g1 := a.Alloc(200)
	require.NotEqual(t, uint64(region.NullOffset), off1)
	a.Free(off1, g1)

	off2, _ := a.Alloc(200)
	assert.Equal(t, off1, off2, "freeing and re-allocating the same size should reuse the same block (best fit, single free block)")
}

// Eager coalescing keeps the free list from accumulating adjacent
// fragments, and it stays ordered by ascending offset.
func TestFreeCoalescesAdjacentBlocks(t *testing.T) {
	_, _, a := newTestAllocator(t, 4096)

	before := a.Stats().FreeBlockCount
	require.Equal(t, uint64(1), before)

	off1, g1 := a.Alloc(64)
	off2, g2 := a.Alloc(64)
	off3, g3 := a.Alloc(64)
	require.NotEqual(t, uint64(region.NullOffset), off1)
	require.NotEqual(t, uint64(region.NullOffset), off2)
	require.NotEqual(t, uint64(region.NullOffset), off3)

	// Free the middle and then the ends: whichever order, the final free
	// list must have coalesced back down to exactly the blocks that existed
	// before any of the three allocations, modulo the remainder.
	a.Free(off2, g2)
	a.Free(off1, g1)
	a.Free(off3, g3)

	assert.Equal(t, before, a.Stats().FreeBlockCount, "fully freeing three adjacent allocations should coalesce back to one free block")

	spans := a.DebugFreeList()
	for i := 1; i < len(spans); i++ {
		assert.Less(t, spans[i-1].Offset, spans[i].Offset, "free list must be strictly ascending by offset")
		assert.Less(t, spans[i-1].Offset+spans[i-1].Span, spans[i].Offset, "adjacent free blocks must not remain uncoalesced")
	}
}

func TestReallocGrowInPlaceWhenNeighbourFree(t *testing.T) {
	_, _, a := newTestAllocator(t, 4096)

	off, granted := a.Alloc(64)
	require.NotEqual(t, uint64(region.NullOffset), off)

	newOff, newGranted := a.Realloc(off, granted, granted+32)
	assert.Equal(t, off, newOff, "growing into free trailing space should not relocate")
	assert.GreaterOrEqual(t, newGranted, granted+32)
}

func TestReallocShrinkFreesTail(t *testing.T) {
	_, _, a := newTestAllocator(t, 4096)

	off, granted := a.Alloc(512)
	require.NotEqual(t, uint64(region.NullOffset), off)

	statsBefore := a.Stats()
	newOff, newGranted := a.Realloc(off, granted, 32)
	assert.Equal(t, off, newOff)
	assert.Less(t, newGranted, granted)

	statsAfter := a.Stats()
	assert.Greater(t, statsAfter.FreeBytes, statsBefore.FreeBytes, "shrinking must return the freed tail to the free list")
}

func TestReallocRelocatesWhenNoRoomToGrow(t *testing.T) {
	_, _, a := newTestAllocator(t, 1<<16)

	off1, g1 := a.Alloc(64)
	require.NotEqual(t, uint64(region.NullOffset), off1)
	// Pin the space immediately after off1 so growth in place is impossible.
	off2, _ := a.Alloc(64)
	require.NotEqual(t, uint64(region.NullOffset), off2)

	newOff, newGranted := a.Realloc(off1, g1, g1+4096)
	assert.NotEqual(t, off1, newOff, "growth that cannot be satisfied in place must relocate")
	assert.GreaterOrEqual(t, newGranted, g1+4096)
}

func TestAllocPreferredExtendsNeighbour(t *testing.T) {
	_, _, a := newTestAllocator(t, 4096)

	base, granted := a.Alloc(region.ChildrenHeaderSize + 4*8)
	require.NotEqual(t, uint64(region.NullOffset), base)

	// The rest of the region is still free immediately after base's span,
	// so AllocPreferred should extend in place rather than relocate.
	grownOff, grownGranted := a.AllocPreferred(region.ChildrenHeaderSize+8*8, base+granted)
	assert.Equal(t, base+granted, grownOff)
	assert.GreaterOrEqual(t, grownGranted, uint64(region.ChildrenHeaderSize+8*8))
}

func TestMaxFreeChunkAndStatsAgree(t *testing.T) {
	_, _, a := newTestAllocator(t, 8192)

	stats := a.Stats()
	assert.Equal(t, stats.LargestFree, a.MaxFreeChunk())
	assert.Equal(t, uint64(1), stats.FreeBlockCount)
}
