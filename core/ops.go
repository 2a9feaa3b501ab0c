package core

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/AriathGonzalez/myfs/inode"
	"github.com/AriathGonzalez/myfs/pathwalk"
	"github.com/AriathGonzalez/myfs/region"
)

// Attr reports an inode's fixed mode, a type-dependent link count, and its
// own recorded timestamps.
type Attr struct {
	Mode  uint32
	Nlink uint32
	Size  uint64
	Uid   uint32
	Gid   uint32
	Atime time.Time
	Mtime time.Time
}

// DirEntry describes one non-parent child of a directory, as returned by
// Readdir.
type DirEntry struct {
	Name  string
	Ino   uint64 // the child's region offset, used as its stable identity
	IsDir bool
}

// Statfs reports fixed, region-wide filesystem statistics.
type Statfs struct {
	Bsize   uint32
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	NameMax uint32
}

func (c *Core) resolve(path string, skipTail int) (inode.Inode, error) {
	ino, err := pathwalk.Resolve(c.r, c.sb.RootInode(), path, skipTail)
	if err != nil {
		return inode.Inode{}, translate(err)
	}
	return ino, nil
}

// Getattr resolves path and reports its fixed-mode attributes. uid/gid are
// passed through from the caller (the kernel request context, in
// production) into the returned Attr. Pure reads touch atime only.
func (c *Core) Getattr(path string, uid, gid uint32) (Attr, error) {
	if err := c.ensureMounted(); err != nil {
		return Attr{}, err
	}
	ino, err := c.resolve(path, 0)
	if err != nil {
		return Attr{}, err
	}

	ino.SetAtime(c.clock())

	attr := Attr{Uid: uid, Gid: gid, Atime: ino.Atime(), Mtime: ino.Mtime()}
	if ino.IsDir() {
		attr.Mode = unix.S_IFDIR | 0755
		attr.Nlink = 2 + uint32(c.countChildDirs(ino))
	} else {
		attr.Mode = unix.S_IFREG | 0755
		attr.Nlink = 1
		attr.Size = ino.Size()
	}
	return attr, nil
}

func (c *Core) countChildDirs(dir inode.Inode) int {
	n := 0
	for _, off := range dir.Children() {
		if inode.At(c.r, off).IsDir() {
			n++
		}
	}
	return n
}

// Readdir resolves path, requires a directory, and returns every non-parent
// child (slot 0, the parent back-reference, is excluded). Pure reads touch
// atime only.
func (c *Core) Readdir(path string) ([]DirEntry, error) {
	if err := c.ensureMounted(); err != nil {
		return nil, err
	}
	dir, err := c.resolve(path, 0)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, ErrNotDir
	}

	dir.SetAtime(c.clock())

	children := dir.Children()
	entries := make([]DirEntry, 0, len(children))
	for _, off := range children {
		child := inode.At(c.r, off)
		entries = append(entries, DirEntry{
			Name:  child.Name(),
			Ino:   off,
			IsDir: child.IsDir(),
		})
	}
	return entries, nil
}

// Mknod resolves name's parent with skipTail=1, creates a new, empty file,
// and wires it into the parent's children array. Any failure after the
// inode itself was allocated rolls the allocation back, leaving the parent
// directory unchanged.
func (c *Core) Mknod(path string) error {
	return c.create(path, region.TypeFile)
}

// Mkdir behaves like Mknod but also allocates and initialises the new
// directory's children array (slot 0 pointing back at the parent).
func (c *Core) Mkdir(path string) error {
	return c.create(path, region.TypeDir)
}

func (c *Core) create(path string, typ uint32) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}

	name := pathwalk.Split(path)
	if len(name) == 0 || len(name) > region.MaxNameLen {
		return ErrNameTooLong
	}

	parent, err := c.resolve(path, 1)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return ErrNotDir
	}
	if _, _, err := parent.Lookup(name); err == nil {
		return ErrExist
	}

	now := c.clock()
	child, err := inode.Create(c.r, c.a, typ, name, now)
	if err != nil {
		return translate(err)
	}

	if typ == region.TypeDir {
		if err := child.InitDir(c.a, parent.Off); err != nil {
			child.Destroy(c.a)
			return translate(err)
		}
	}

	if err := parent.AddChild(c.a, child.Off); err != nil {
		if typ == region.TypeDir {
			child.FreeChildren(c.a)
		}
		child.Destroy(c.a)
		return translate(err)
	}

	parent.SetMtime(now)
	return nil
}

// Unlink resolves path, requires a file, frees its content chain and its
// own record, then compacts it out of its parent's children array.
func (c *Core) Unlink(path string) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}

	parent, err := c.resolve(path, 1)
	if err != nil {
		return err
	}
	name := pathwalk.Split(path)
	childOff, slotIdx, err := parent.Lookup(name)
	if err != nil {
		return translate(err)
	}

	child := inode.At(c.r, childOff)
	if !child.IsFile() {
		return ErrIsDir
	}

	child.FreeChain(c.a)
	child.Destroy(c.a)
	parent.RemoveChildAt(c.a, slotIdx)
	parent.SetMtime(c.clock())
	return nil
}

// Rmdir resolves path, requires an empty directory (only the parent slot
// present), frees its children array and its own record, then compacts it
// out of its parent's children array.
func (c *Core) Rmdir(path string) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}

	parent, err := c.resolve(path, 1)
	if err != nil {
		return err
	}
	name := pathwalk.Split(path)
	childOff, slotIdx, err := parent.Lookup(name)
	if err != nil {
		return translate(err)
	}

	child := inode.At(c.r, childOff)
	if !child.IsDir() {
		return ErrNotDir
	}
	if child.NumChildren() != 1 {
		return ErrNotEmpty
	}

	child.FreeChildren(c.a)
	child.Destroy(c.a)
	parent.RemoveChildAt(c.a, slotIdx)
	parent.SetMtime(c.clock())
	return nil
}

// Truncate resolves path, requires a file, and resizes its content chain.
func (c *Core) Truncate(path string, size uint64) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}
	ino, err := c.resolve(path, 0)
	if err != nil {
		return err
	}
	if !ino.IsFile() {
		return ErrIsDir
	}

	if size == ino.Size() {
		ino.SetAtime(c.clock())
		return nil
	}
	if err := ino.Truncate(c.a, size); err != nil {
		return translate(err)
	}
	ino.SetMtime(c.clock())
	return nil
}

// Open resolves path and reports ENOENT if it does not exist; it makes no
// other state change.
func (c *Core) Open(path string) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}
	_, err := c.resolve(path, 0)
	return err
}

// Read resolves path, requires a file, and copies into buf starting at
// offset, returning 0 bytes with no error if offset >= size.
func (c *Core) Read(path string, buf []byte, offset uint64) (int, error) {
	if err := c.ensureMounted(); err != nil {
		return 0, err
	}
	ino, err := c.resolve(path, 0)
	if err != nil {
		return 0, err
	}
	if !ino.IsFile() {
		return 0, ErrIsDir
	}

	n := ino.Read(buf, offset)
	ino.SetAtime(c.clock())
	return n, nil
}

// Write resolves path, requires a file, and writes data at offset,
// implicitly zero-filling any hole between the current size and offset.
func (c *Core) Write(path string, data []byte, offset uint64) (int, error) {
	if err := c.ensureMounted(); err != nil {
		return 0, err
	}
	ino, err := c.resolve(path, 0)
	if err != nil {
		return 0, err
	}
	if !ino.IsFile() {
		return 0, ErrIsDir
	}

	n, err := ino.Write(c.a, data, offset)
	if err != nil {
		return 0, translate(err)
	}
	ino.SetMtime(c.clock())
	return n, nil
}

// Utimens resolves path and overwrites both timestamps from the caller's
// values directly, bypassing the clock.
func (c *Core) Utimens(path string, atime, mtime time.Time) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}
	ino, err := c.resolve(path, 0)
	if err != nil {
		return err
	}
	ino.SetAtime(atime)
	ino.SetMtime(mtime)
	return nil
}

// Statfs reports region-wide free-space statistics under a fixed
// f_bsize=1024 / f_namemax=255 contract.
func (c *Core) Statfs() (Statfs, error) {
	if err := c.ensureMounted(); err != nil {
		return Statfs{}, err
	}
	stats := c.a.Stats()
	free := stats.FreeBytes / region.BlockSize
	return Statfs{
		Bsize:   region.BlockSize,
		Blocks:  c.sb.RegionSize() / region.BlockSize,
		Bfree:   free,
		Bavail:  free,
		NameMax: region.MaxNameLen,
	}, nil
}

// Rename resolves from, resolves to's parent, and moves from into it under
// to's final component. The new location is
// wired in before from is removed from its old parent or any displaced
// inode at to is unlinked and destroyed, so an allocator failure during the insert
// leaves from exactly where — and as — it was.
func (c *Core) Rename(from, to string) error {
	if err := c.ensureMounted(); err != nil {
		return err
	}

	toName := pathwalk.Split(to)
	if len(toName) == 0 || len(toName) > region.MaxNameLen {
		return ErrNameTooLong
	}

	fromIno, err := c.resolve(from, 0)
	if err != nil {
		return err
	}

	toParent, err := c.resolve(to, 1)
	if err != nil {
		return err
	}
	if !toParent.IsDir() {
		return ErrNotDir
	}

	fromName := pathwalk.Split(from)
	if toParent.Off == fromIno.Off {
		// renaming a directory into itself — nonsensical, reject.
		return ErrInval
	}

	var displacedOff, displacedSlot uint64
	displaced := false
	if existingOff, existingSlot, err := toParent.Lookup(toName); err == nil {
		if existingOff == fromIno.Off {
			// from == to: no-op.
			return nil
		}
		existing := inode.At(c.r, existingOff)
		if existing.IsDir() != fromIno.IsDir() {
			if existing.IsDir() {
				return ErrIsDir
			}
			return ErrNotDir
		}
		if existing.IsDir() && existing.NumChildren() != 1 {
			return ErrNotEmpty
		}
		displacedOff = existingOff
		displacedSlot = existingSlot
		displaced = true
	}

	if isAncestor(c.r, fromIno.Off, toParent) {
		return ErrInval
	}

	fromParent, err := c.resolve(from, 1)
	if err != nil {
		return err
	}

	if err := toParent.AddChild(c.a, fromIno.Off); err != nil {
		return translate(err)
	}

	if _, fromSlotIdx, err := fromParent.Lookup(fromName); err == nil {
		fromParent.RemoveChildAt(c.a, fromSlotIdx)
	}
	fromIno.SetName(toName)

	if displaced {
		toParent.RemoveChildAt(c.a, displacedSlot)
		displacedIno := inode.At(c.r, displacedOff)
		if displacedIno.IsFile() {
			displacedIno.FreeChain(c.a)
		} else {
			displacedIno.FreeChildren(c.a)
		}
		displacedIno.Destroy(c.a)
	}

	now := c.clock()
	fromParent.SetMtime(now)
	toParent.SetMtime(now)
	return nil
}

// isAncestor reports whether candidateOff is an ancestor of (or equal to)
// dir, walking dir's parent chain up to the root.
func isAncestor(r *region.Region, candidateOff uint64, dir inode.Inode) bool {
	cur := dir
	for {
		if cur.Off == candidateOff {
			return true
		}
		parent := cur.Parent()
		if parent == region.NullOffset {
			return false
		}
		cur = inode.At(r, parent)
	}
}
