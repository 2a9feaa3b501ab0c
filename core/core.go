// Package core implements the filesystem operation layer: the 13 entry
// points, built directly on region, alloc, inode, and pathwalk. Core is a
// pure function of its arguments and the region it is handed — it caches
// no per-call state between operations, so a fresh Core may be
// constructed over the same backing bytes on every remount without
// losing anything.
package core

import (
	"time"

	"github.com/AriathGonzalez/myfs/alloc"
	"github.com/AriathGonzalez/myfs/inode"
	"github.com/AriathGonzalez/myfs/region"
)

// Clock is the minimal time source Core needs; fuseadapter supplies a
// jacobsa/timeutil.Clock here in production, tests supply a fixed or
// stepping func.
type Clock func() time.Time

// Core is the in-region filesystem implementation. It is NOT safe for
// concurrent use: entry points must run to completion one at a time, and
// the caller (fuseadapter, or a test) is responsible for serialising
// calls.
type Core struct {
	r     *region.Region
	sb    region.Superblock
	a     *alloc.Allocator
	clock Clock
}

// Open mounts buf: if it already carries the myfs magic, Core operates on
// the existing tree; otherwise it bootstraps a fresh, empty filesystem in
// place first. Either way it returns a ready-to-use Core, unless the region
// is too small to hold the bootstrap layout, in which case it returns
// ErrNoSpace.
func Open(buf []byte, clock Clock) (*Core, error) {
	r := region.New(buf)
	sb := region.LoadSuperblock(r)

	c := &Core{r: r, sb: sb, clock: clock}
	if !sb.Present() {
		if err := c.bootstrap(); err != nil {
			return nil, err
		}
	}
	c.a = alloc.New(r, sb)
	return c, nil
}

// ensureMounted re-runs bootstrap if needed. Every exported operation
// calls this first; it is a no-op once the magic is present.
func (c *Core) ensureMounted() error {
	if c.sb.Present() {
		return nil
	}
	if err := c.bootstrap(); err != nil {
		return err
	}
	c.a = alloc.New(c.r, c.sb)
	return nil
}

// bootstrap lays out the reserved area — superblock, root inode, root's
// bootstrap children array — then points the allocator's free list at
// everything after it. The magic is written
// last, so a region is only ever observed as "present" once every other
// field in the reserved area is valid.
func (c *Core) bootstrap() error {
	rootOff := uint64(region.SuperblockSize)
	childrenOff := rootOff + region.InodeSize
	freeStart := childrenOff + inode.ChildrenArraySpan(region.InitialChildCapacity)

	if freeStart >= c.r.Size() {
		return ErrNoSpace
	}

	now := c.clock()
	inode.BootstrapRoot(c.r, rootOff, childrenOff, now)
	alloc.Bootstrap(c.r, c.sb, freeStart)
	c.sb.Init(c.r.Size(), rootOff, freeStart)
	return nil
}

func (c *Core) root() inode.Inode {
	return inode.At(c.r, c.sb.RootInode())
}

// RootOffset exposes the root inode's region offset, which never changes
// for the lifetime of a region.
func (c *Core) RootOffset() (uint64, error) {
	if err := c.ensureMounted(); err != nil {
		return 0, err
	}
	return c.sb.RootInode(), nil
}

// Name resolves path and returns the offset and directory-ness of the
// inode it names, without fetching full attributes.
func (c *Core) Name(path string) (off uint64, isDir bool, err error) {
	if err := c.ensureMounted(); err != nil {
		return 0, false, err
	}
	ino, err := c.resolve(path, 0)
	if err != nil {
		return 0, false, err
	}
	return ino.Off, ino.IsDir(), nil
}
