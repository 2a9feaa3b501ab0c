package inode

import (
	"time"

	"github.com/AriathGonzalez/myfs/alloc"
	"github.com/AriathGonzalez/myfs/region"
)

// Directory-body field accessors. The body's first 8 bytes hold
// NumChildren, the next 8 the offset of the children array (region.Region
// holds both; Inode just knows where to find them).

func (ino Inode) numChildren() uint64 {
	return ino.r.ReadUint64(ino.bodyBase() + region.DirBodyNumChildrenOff)
}

func (ino Inode) setNumChildren(n uint64) {
	ino.r.WriteUint64(ino.bodyBase()+region.DirBodyNumChildrenOff, n)
}

func (ino Inode) childrenOff() uint64 {
	return ino.r.ReadUint64(ino.bodyBase() + region.DirBodyChildrenOff)
}

func (ino Inode) setChildrenOff(off uint64) {
	ino.r.WriteUint64(ino.bodyBase()+region.DirBodyChildrenOff, off)
}

func (ino Inode) childrenCapacity() uint64 {
	return ino.r.ReadUint64(ino.childrenOff() + region.ChildrenCapacityOff)
}

func (ino Inode) setChildrenCapacity(cap uint64) {
	ino.r.WriteUint64(ino.childrenOff()+region.ChildrenCapacityOff, cap)
}

func childSlotOff(childrenOff uint64, i uint64) uint64 {
	return childrenOff + region.ChildrenSlotsOff + i*8
}

func (ino Inode) slot(i uint64) uint64 {
	return ino.r.ReadUint64(childSlotOff(ino.childrenOff(), i))
}

func (ino Inode) setSlot(i uint64, off uint64) {
	ino.r.WriteUint64(childSlotOff(ino.childrenOff(), i), off)
}

func childrenArraySpan(capacity uint64) uint64 {
	return region.ChildrenHeaderSize + capacity*8
}

// ChildrenArraySpan returns the total byte span (header + slots) of a
// children array of the given capacity, exported so core can size the
// region's reserved bootstrap layout without duplicating the arithmetic.
func ChildrenArraySpan(capacity uint64) uint64 { return childrenArraySpan(capacity) }

// BootstrapRoot lays out the root directory inode at rootOff and its
// initial children array at childrenOff directly, bypassing the allocator
// entirely — used once, by core.Open, before the free list exists to hand
// out space from. Slot 0 is left as region.NullOffset, the reserved value
// for "no parent."
func BootstrapRoot(r *region.Region, rootOff, childrenOff uint64, now time.Time) {
	r.Zero(rootOff, region.InodeSize)
	r.Zero(childrenOff, childrenArraySpan(region.InitialChildCapacity))

	root := At(r, rootOff)
	root.SetAtime(now)
	root.SetMtime(now)
	root.setType(region.TypeDir)
	root.setChildrenOff(childrenOff)
	root.setNumChildren(1)
	root.setSlot(0, region.NullOffset)
	root.setChildrenCapacity(region.InitialChildCapacity)
}

// InitDir turns a freshly created inode into an empty directory: it
// allocates the initial children array (capacity region.InitialChildCapacity)
// and points slot 0 at parentOff (0 for the root, whose own parent doesn't
// exist).
func (ino Inode) InitDir(a *alloc.Allocator, parentOff uint64) error {
	ino.setType(region.TypeDir)

	capOff, granted := a.Alloc(childrenArraySpan(region.InitialChildCapacity))
	if capOff == region.NullOffset {
		return ErrNoSpace
	}

	ino.setChildrenOff(capOff)
	ino.setChildrenCapacity((granted - region.ChildrenHeaderSize) / 8)
	ino.setNumChildren(1)
	ino.setSlot(0, parentOff)
	return nil
}

// NumChildren returns the directory's child count, including the reserved
// parent slot at index 0.
func (ino Inode) NumChildren() uint64 { return ino.numChildren() }

// Parent returns slot 0 of the children array: the offset of this
// directory's parent inode, or region.NullOffset for the root.
func (ino Inode) Parent() uint64 { return ino.slot(0) }

// DebugChildrenArraySpan returns the byte span currently allocated to this
// directory's children array (header plus capacity slots), for core's
// myfsdebug invariant accounting.
func (ino Inode) DebugChildrenArraySpan() uint64 {
	return childrenArraySpan(ino.childrenCapacity())
}

// Children returns the offsets of the directory's non-parent children
// (slots 1..NumChildren-1), skipping unused tail capacity.
func (ino Inode) Children() []uint64 {
	n := ino.numChildren()
	out := make([]uint64, 0, n)
	for i := uint64(1); i < n; i++ {
		out = append(out, ino.slot(i))
	}
	return out
}

// Lookup performs a linear, case-sensitive scan over the children array,
// skipping slot 0. It returns the child's offset and its slot index, or
// ErrNotFound.
func (ino Inode) Lookup(name string) (childOff uint64, slotIdx uint64, err error) {
	n := ino.numChildren()
	for i := uint64(1); i < n; i++ {
		off := ino.slot(i)
		if At(ino.r, off).Name() == name {
			return off, i, nil
		}
	}
	return region.NullOffset, 0, ErrNotFound
}

// AddChild appends childOff as a new entry, growing the children array by
// doubling (via the preferred-neighbour extend) when full. On allocator
// failure the directory is left completely unchanged.
func (ino Inode) AddChild(a *alloc.Allocator, childOff uint64) error {
	n := ino.numChildren()
	capacity := ino.childrenCapacity()

	if n >= capacity {
		newCap := capacity * 2
		oldOff := ino.childrenOff()
		oldSpan := childrenArraySpan(capacity)
		newSpan := childrenArraySpan(newCap)

		newOff, granted := a.Realloc(oldOff, oldSpan, newSpan)
		if newOff == region.NullOffset {
			return ErrNoSpace
		}

		ino.setChildrenOff(newOff)
		ino.setChildrenCapacity((granted - region.ChildrenHeaderSize) / 8)
	}

	ino.setSlot(n, childOff)
	ino.setNumChildren(n + 1)
	return nil
}

// RemoveChildAt compacts the children array after removing the entry at
// slotIdx by overwriting the removed slot with the last used slot and
// decrementing the count. If the resulting usage is small relative
// to capacity (capacity >= 4x used) the array is optionally shrunk back
// via Realloc; a shrink failure is not itself an error, since the larger
// array remains perfectly usable.
func (ino Inode) RemoveChildAt(a *alloc.Allocator, slotIdx uint64) {
	n := ino.numChildren()
	last := n - 1

	if slotIdx != last {
		ino.setSlot(slotIdx, ino.slot(last))
	}
	ino.setSlot(last, 0)
	ino.setNumChildren(last)

	capacity := ino.childrenCapacity()
	used := last
	if capacity >= region.InitialChildCapacity*2 && capacity >= used*4 {
		newCap := capacity / 2
		if newCap < region.InitialChildCapacity {
			newCap = region.InitialChildCapacity
		}
		if newCap < capacity {
			oldOff := ino.childrenOff()
			oldSpan := childrenArraySpan(capacity)
			newSpan := childrenArraySpan(newCap)
			if newOff, granted := a.Realloc(oldOff, oldSpan, newSpan); newOff != region.NullOffset {
				ino.setChildrenOff(newOff)
				ino.setChildrenCapacity((granted - region.ChildrenHeaderSize) / 8)
			}
		}
	}
}

// FreeChildren returns the children array's own backing allocation to the
// allocator. Callers must have already ensured the directory is empty of
// real children (rmdir's num_children == 1 check).
func (ino Inode) FreeChildren(a *alloc.Allocator) {
	a.Free(ino.childrenOff(), childrenArraySpan(ino.childrenCapacity()))
}
