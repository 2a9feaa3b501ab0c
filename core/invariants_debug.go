//go:build myfsdebug

package core

import (
	"fmt"

	"github.com/AriathGonzalez/myfs/inode"
	"github.com/AriathGonzalez/myfs/region"
)

// checkInvariants walks the live tree and free list and panics on the
// first structural mismatch: every inode reachable from root by exactly
// one path with a correct parent backreference, every file's size bounded
// by what its block chain has allocated, the free list strictly ascending
// with no adjacent blocks left uncoalesced, and the superblock/allocated/
// free byte counts summing to the full region size. It does not check
// offset bounds (every dereference already goes through
// region.Region.Slice, which bounds-checks unconditionally) or mtime
// monotonicity (that requires comparison against a prior snapshot, not
// just the current one).
func checkInvariants(c *Core) {
	visited := make(map[uint64]bool)

	var allocatedBytes uint64
	var walk func(off uint64, expectParent uint64)
	walk = func(off uint64, expectParent uint64) {
		if visited[off] {
			panic(fmt.Sprintf("core: inode at %d reachable by more than one path", off))
		}
		visited[off] = true
		allocatedBytes += region.InodeSize

		ino := inode.At(c.r, off)
		switch {
		case ino.IsDir():
			if ino.Parent() != expectParent {
				panic(fmt.Sprintf("core: dir at %d has parent %d, want %d", off, ino.Parent(), expectParent))
			}
			allocatedBytes += ino.DebugChildrenArraySpan()
			for _, childOff := range ino.Children() {
				walk(childOff, off)
			}

		case ino.IsFile():
			allocated, span := ino.DebugBlockChainStats()
			if ino.Size() > allocated {
				panic(fmt.Sprintf("core: file at %d has size %d > allocated %d", off, ino.Size(), allocated))
			}
			allocatedBytes += span

		default:
			panic(fmt.Sprintf("core: inode at %d has unrecognised type", off))
		}
	}
	walk(c.sb.RootInode(), region.NullOffset)

	var freeBytes uint64
	spans := c.a.DebugFreeList()
	for i, s := range spans {
		if i > 0 {
			prev := spans[i-1]
			if s.Offset <= prev.Offset {
				panic(fmt.Sprintf("core: free list not strictly ascending at offset %d", s.Offset))
			}
			if prev.Offset+prev.Span >= s.Offset {
				panic(fmt.Sprintf("core: adjacent free blocks at %d and %d were not coalesced", prev.Offset, s.Offset))
			}
		}
		freeBytes += s.Span
	}

	total := region.SuperblockSize + allocatedBytes + freeBytes
	if total != c.r.Size() {
		panic(fmt.Sprintf("core: superblock(%d) + allocated(%d) + free(%d) = %d, want region size %d",
			region.SuperblockSize, allocatedBytes, freeBytes, total, c.r.Size()))
	}
}
