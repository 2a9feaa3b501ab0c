// Package inode implements the hierarchical inode model: fixed-size inode
// records, a growable directory children array, and a file content block
// chain. Like region and alloc, it is stateless beyond the Region and
// Allocator it is handed on each call.
package inode

import (
	"time"

	"github.com/AriathGonzalez/myfs/alloc"
	"github.com/AriathGonzalez/myfs/region"
)

// Inode is an accessor for the fixed-size record at a given offset. It
// holds no cached state; every field read goes straight through to the
// Region.
type Inode struct {
	r   *region.Region
	Off uint64
}

// At returns an accessor for the inode record at off. It does not validate
// that off actually holds an inode; callers reach it only via trusted
// offsets (the superblock's RootInode, or a children-array slot).
func At(r *region.Region, off uint64) Inode {
	return Inode{r: r, Off: off}
}

// Create allocates and zero-initialises a new inode of the given type,
// stamping both timestamps with now. The zeroed body already describes an
// empty file; a directory's body is filled in afterward by InitDir.
func Create(r *region.Region, a *alloc.Allocator, typ uint32, name string, now time.Time) (Inode, error) {
	if len(name) > region.MaxNameLen {
		return Inode{}, ErrNameTooLong
	}

	off, _ := a.Alloc(region.InodeSize)
	if off == region.NullOffset {
		return Inode{}, ErrNoSpace
	}

	r.Zero(off, region.InodeSize)
	ino := At(r, off)
	ino.setName(name)
	ino.SetAtime(now)
	ino.SetMtime(now)
	ino.setType(typ)
	return ino, nil
}

// Destroy returns the inode's own record to the allocator. Callers must
// have already freed whatever the body references (file block chain, or
// children array) before calling this.
func (ino Inode) Destroy(a *alloc.Allocator) {
	a.Free(ino.Off, region.InodeSize)
}

func (ino Inode) nameBytes() []byte {
	return ino.r.MustSlice(ino.Off, region.InodeNameSize)
}

// Name returns the inode's name as a Go string, stopping at the first NUL.
func (ino Inode) Name() string {
	b := ino.nameBytes()
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// SetName overwrites the name buffer, or returns ErrNameTooLong and leaves
// the buffer untouched if name is longer than region.MaxNameLen.
func (ino Inode) SetName(name string) error {
	if len(name) > region.MaxNameLen {
		return ErrNameTooLong
	}
	ino.setName(name)
	return nil
}

func (ino Inode) setName(name string) {
	b := ino.nameBytes()
	for i := range b {
		b[i] = 0
	}
	copy(b, name)
}

func unixNano(t time.Time) int64 { return t.UnixNano() }

func fromUnixNano(ns int64) time.Time { return time.Unix(0, ns).UTC() }

// Atime returns the inode's last-access time.
func (ino Inode) Atime() time.Time {
	return fromUnixNano(ino.r.ReadInt64(ino.Off + region.InodeAtimeOff))
}

// SetAtime updates the inode's last-access time.
func (ino Inode) SetAtime(t time.Time) {
	ino.r.WriteInt64(ino.Off+region.InodeAtimeOff, unixNano(t))
}

// Mtime returns the inode's last-modification time.
func (ino Inode) Mtime() time.Time {
	return fromUnixNano(ino.r.ReadInt64(ino.Off + region.InodeMtimeOff))
}

// SetMtime updates the inode's last-modification time. It stores t as
// given without comparing it to the current Mtime; the core passes the
// clock's current reading on every mutation except Utimens, which stores
// the caller's timestamps as given.
func (ino Inode) SetMtime(t time.Time) {
	ino.r.WriteInt64(ino.Off+region.InodeMtimeOff, unixNano(t))
}

// Type returns the inode's type discriminant, region.TypeFile or
// region.TypeDir.
func (ino Inode) Type() uint32 {
	return ino.r.ReadUint32(ino.Off + region.InodeTypeOff)
}

func (ino Inode) setType(t uint32) {
	ino.r.WriteUint32(ino.Off+region.InodeTypeOff, t)
}

// bodyBase is the start of the type-specific union body, shared by file.go
// and dir.go so they don't repeat the offset arithmetic.
func (ino Inode) bodyBase() uint64 { return ino.Off + region.InodeBodyOff }

// IsDir reports whether this inode is a directory.
func (ino Inode) IsDir() bool { return ino.Type() == region.TypeDir }

// IsFile reports whether this inode is a file.
func (ino Inode) IsFile() bool { return ino.Type() == region.TypeFile }
