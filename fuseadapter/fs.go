// Package fuseadapter adapts core.Core to github.com/jacobsa/fuse's
// fuse.FileSystem interface: it maintains the kernel-inode-ID <-> path
// table fuse requires, mints directory and file handles, and serialises
// every call behind a single lock, the way samples/memfs does it in the
// teacher repo.
package fuseadapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"

	"github.com/AriathGonzalez/myfs/core"
)

// node is what the adapter remembers about a kernel-visible inode ID: the
// region-relative path core.Core resolves it by, and how many times the
// kernel has looked it up without yet forgetting it.
//
// Unlike a heap-resident inode struct, core's state lives entirely in the
// region; a node entry is just a cache of the path the kernel used to
// reach it, refreshed on every lookup.
type node struct {
	path        string
	isDir       bool
	lookupCount uint64
}

// FS implements fuse.FileSystem over a core.Core. It is not safe for
// concurrent use by itself -- mu serialises every call, since Core
// operations must run to completion one at a time.
type FS struct {
	core  *core.Core
	clock timeutil.Clock

	// GUARDED_BY(mu)
	mu syncutil.InvariantMutex

	nodes    []*node // index = fuse.InodeID; nil means the slot is free
	freeIDs  []fuse.InodeID
	pathToID map[string]fuse.InodeID

	nextHandle  fuse.HandleID
	dirHandles  map[fuse.HandleID][]dirSnapshotEntry
	fileHandles map[fuse.HandleID]struct{}
}

type dirSnapshotEntry struct {
	name  string
	ino   fuse.InodeID
	isDir bool
}

// New mounts buf as a myfs region and returns a fuse.FileSystem serving
// it. clock supplies both core's notion of "now" and the expiration
// timestamps handed back to the kernel.
func New(buf []byte, clock timeutil.Clock) (fuse.FileSystem, error) {
	c, err := core.Open(buf, clock.Now)
	if err != nil {
		return nil, err
	}

	fs := &FS{
		core:        c,
		clock:       clock,
		nodes:       make([]*node, fuse.RootInodeID+1),
		pathToID:    make(map[string]fuse.InodeID),
		dirHandles:  make(map[fuse.HandleID][]dirSnapshotEntry),
		fileHandles: make(map[fuse.HandleID]struct{}),
	}
	fs.nodes[fuse.RootInodeID] = &node{path: "/", isDir: true, lookupCount: 1}
	fs.pathToID["/"] = fuse.RootInodeID

	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	checkInvariants(fs)
	return fs, nil
}

func (fs *FS) checkInvariants() {
	checkInvariants(fs)
}

func join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// resolveOrMint returns the kernel inode ID for childPath, minting a new
// one (and bumping its lookup count by one, per the FUSE lookup-count
// contract) if the kernel hasn't seen this path before.
func (fs *FS) resolveOrMint(childPath string, isDir bool) fuse.InodeID {
	if id, ok := fs.pathToID[childPath]; ok {
		fs.nodes[id].lookupCount++
		return id
	}

	var id fuse.InodeID
	if n := len(fs.freeIDs); n > 0 {
		id = fs.freeIDs[n-1]
		fs.freeIDs = fs.freeIDs[:n-1]
	} else {
		id = fuse.InodeID(len(fs.nodes))
		fs.nodes = append(fs.nodes, nil)
	}

	fs.nodes[id] = &node{path: childPath, isDir: isDir, lookupCount: 1}
	fs.pathToID[childPath] = id
	return id
}

func (fs *FS) pathFor(id fuse.InodeID) (string, error) {
	n := fs.nodes[id]
	if n == nil {
		return "", fuse.EIO
	}
	return n.path, nil
}

// renameSubtree rewrites the cached path of every node whose path is
// oldPath or a descendant of it, after core.Rename has already moved the
// underlying inode. The kernel never learns of this bookkeeping -- it
// only ever sees the IDs it already holds keep working.
func (fs *FS) renameSubtree(oldPath, newPath string) {
	for p, id := range fs.pathToID {
		if p != oldPath && !strings.HasPrefix(p, oldPath+"/") {
			continue
		}
		np := newPath + strings.TrimPrefix(p, oldPath)
		delete(fs.pathToID, p)
		fs.pathToID[np] = id
		fs.nodes[id].path = np
	}
}

// isDirMode reports whether a core.Attr.Mode (a raw unix.S_IFDIR/S_IFREG
// mode word) describes a directory.
func isDirMode(mode uint32) bool {
	return mode&unix.S_IFMT == unix.S_IFDIR
}

func attrsFromCore(a core.Attr) fuse.InodeAttributes {
	mode := os.FileMode(a.Mode & 0777)
	if isDirMode(a.Mode) {
		mode |= os.ModeDir
	}
	return fuse.InodeAttributes{
		Size:  a.Size,
		Nlink: uint64(a.Nlink),
		Mode:  mode,
		Atime: a.Atime,
		Mtime: a.Mtime,
		Uid:   a.Uid,
		Gid:   a.Gid,
	}
}

// translateErr passes core's Errno values through unchanged: core.Errno
// already wraps a golang.org/x/sys/unix errno and implements error, which
// is all the jacobsa/fuse request-dispatch loop needs to report a
// meaningful failure back to the kernel. Any other error (a programming
// bug, not a filesystem condition) also passes through unchanged and
// surfaces as an opaque I/O error to the caller.
func translateErr(err error) error {
	return err
}

////////////////////////////////////////////////////////////////////////
// FileSystem methods
////////////////////////////////////////////////////////////////////////

func (fs *FS) Init(
	ctx context.Context,
	req *fuse.InitRequest) (*fuse.InitResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return &fuse.InitResponse{}, nil
}

func (fs *FS) LookUpInode(
	ctx context.Context,
	req *fuse.LookUpInodeRequest) (*fuse.LookUpInodeResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathFor(req.Parent)
	if err != nil {
		return nil, err
	}
	childPath := join(parentPath, req.Name)

	attr, err := fs.core.Getattr(childPath, req.Header.Uid, req.Header.Gid)
	if err != nil {
		return nil, translateErr(err)
	}

	id := fs.resolveOrMint(childPath, isDirMode(attr.Mode))

	resp := &fuse.LookUpInodeResponse{}
	resp.Entry.Child = id
	resp.Entry.Attributes = attrsFromCore(attr)
	resp.Entry.AttributesExpiration = fs.clock.Now()
	resp.Entry.EntryExpiration = fs.clock.Now()
	return resp, nil
}

func (fs *FS) GetInodeAttributes(
	ctx context.Context,
	req *fuse.GetInodeAttributesRequest) (*fuse.GetInodeAttributesResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathFor(req.Inode)
	if err != nil {
		return nil, err
	}

	attr, err := fs.core.Getattr(p, req.Header.Uid, req.Header.Gid)
	if err != nil {
		return nil, translateErr(err)
	}

	return &fuse.GetInodeAttributesResponse{
		Attributes:           attrsFromCore(attr),
		AttributesExpiration: fs.clock.Now(),
	}, nil
}

func (fs *FS) SetInodeAttributes(
	ctx context.Context,
	req *fuse.SetInodeAttributesRequest) (*fuse.SetInodeAttributesResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathFor(req.Inode)
	if err != nil {
		return nil, err
	}

	if req.Size != nil {
		if err := fs.core.Truncate(p, *req.Size); err != nil {
			return nil, translateErr(err)
		}
	}
	if req.Atime != nil || req.Mtime != nil {
		attr, err := fs.core.Getattr(p, req.Header.Uid, req.Header.Gid)
		if err != nil {
			return nil, translateErr(err)
		}
		at, mt := attr.Atime, attr.Mtime
		if req.Atime != nil {
			at = *req.Atime
		}
		if req.Mtime != nil {
			mt = *req.Mtime
		}
		if err := fs.core.Utimens(p, at, mt); err != nil {
			return nil, translateErr(err)
		}
	}

	attr, err := fs.core.Getattr(p, req.Header.Uid, req.Header.Gid)
	if err != nil {
		return nil, translateErr(err)
	}

	return &fuse.SetInodeAttributesResponse{
		Attributes:           attrsFromCore(attr),
		AttributesExpiration: fs.clock.Now(),
	}, nil
}

func (fs *FS) ForgetInode(
	ctx context.Context,
	req *fuse.ForgetInodeRequest) (*fuse.ForgetInodeResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if req.ID == fuse.RootInodeID {
		return &fuse.ForgetInodeResponse{}, nil
	}

	n := fs.nodes[req.ID]
	if n == nil {
		return &fuse.ForgetInodeResponse{}, nil
	}
	if n.lookupCount > 0 {
		n.lookupCount--
	}
	if n.lookupCount == 0 {
		delete(fs.pathToID, n.path)
		fs.nodes[req.ID] = nil
		fs.freeIDs = append(fs.freeIDs, req.ID)
	}
	return &fuse.ForgetInodeResponse{}, nil
}

func (fs *FS) create(
	parent fuse.InodeID,
	name string,
	uid, gid uint32,
	isDir bool) (fuse.ChildInodeEntry, error) {
	parentPath, err := fs.pathFor(parent)
	if err != nil {
		return fuse.ChildInodeEntry{}, err
	}
	childPath := join(parentPath, name)

	var createErr error
	if isDir {
		createErr = fs.core.Mkdir(childPath)
	} else {
		createErr = fs.core.Mknod(childPath)
	}
	if createErr != nil {
		return fuse.ChildInodeEntry{}, translateErr(createErr)
	}

	attr, err := fs.core.Getattr(childPath, uid, gid)
	if err != nil {
		return fuse.ChildInodeEntry{}, translateErr(err)
	}

	id := fs.resolveOrMint(childPath, isDir)
	return fuse.ChildInodeEntry{
		Child:                id,
		Attributes:           attrsFromCore(attr),
		AttributesExpiration: fs.clock.Now(),
		EntryExpiration:      fs.clock.Now(),
	}, nil
}

func (fs *FS) MkDir(
	ctx context.Context,
	req *fuse.MkDirRequest) (*fuse.MkDirResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.create(req.Parent, req.Name, req.Header.Uid, req.Header.Gid, true)
	if err != nil {
		return nil, err
	}
	return &fuse.MkDirResponse{Entry: entry}, nil
}

func (fs *FS) CreateFile(
	ctx context.Context,
	req *fuse.CreateFileRequest) (*fuse.CreateFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entry, err := fs.create(req.Parent, req.Name, req.Header.Uid, req.Header.Gid, false)
	if err != nil {
		return nil, err
	}

	fs.nextHandle++
	fs.fileHandles[fs.nextHandle] = struct{}{}

	return &fuse.CreateFileResponse{Entry: entry, Handle: fs.nextHandle}, nil
}

func (fs *FS) RmDir(
	ctx context.Context,
	req *fuse.RmDirRequest) (*fuse.RmDirResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathFor(req.Parent)
	if err != nil {
		return nil, err
	}
	if err := fs.core.Rmdir(join(parentPath, req.Name)); err != nil {
		return nil, translateErr(err)
	}
	return &fuse.RmDirResponse{}, nil
}

func (fs *FS) Unlink(
	ctx context.Context,
	req *fuse.UnlinkRequest) (*fuse.UnlinkResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathFor(req.Parent)
	if err != nil {
		return nil, err
	}
	if err := fs.core.Unlink(join(parentPath, req.Name)); err != nil {
		return nil, translateErr(err)
	}
	return &fuse.UnlinkResponse{}, nil
}

func (fs *FS) OpenDir(
	ctx context.Context,
	req *fuse.OpenDirRequest) (*fuse.OpenDirResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathFor(req.Inode)
	if err != nil {
		return nil, err
	}

	entries, err := fs.core.Readdir(p)
	if err != nil {
		return nil, translateErr(err)
	}

	snap := make([]dirSnapshotEntry, 0, len(entries))
	for _, e := range entries {
		id := fs.resolveOrMint(join(p, e.Name), e.IsDir)
		snap = append(snap, dirSnapshotEntry{name: e.Name, ino: id, isDir: e.IsDir})
	}

	fs.nextHandle++
	fs.dirHandles[fs.nextHandle] = snap
	return &fuse.OpenDirResponse{Handle: fs.nextHandle}, nil
}

func (fs *FS) ReadDir(
	ctx context.Context,
	req *fuse.ReadDirRequest) (*fuse.ReadDirResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	snap, ok := fs.dirHandles[req.Handle]
	if !ok {
		return nil, fuse.EIO
	}

	buf := make([]byte, 0, req.Size)
	off := int(req.Offset)
	for off < len(snap) {
		e := snap[off]
		dt := dtReg
		if e.isDir {
			dt = dtDir
		}
		n := appendDirent(buf[len(buf):cap(buf)], uint64(e.ino), uint64(off+1), dt, e.name)
		if n == 0 {
			break
		}
		buf = buf[:len(buf)+n]
		off++
	}

	return &fuse.ReadDirResponse{Data: buf}, nil
}

func (fs *FS) ReleaseDirHandle(
	ctx context.Context,
	req *fuse.ReleaseDirHandleRequest) (*fuse.ReleaseDirHandleResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.dirHandles, req.Handle)
	return &fuse.ReleaseDirHandleResponse{}, nil
}

func (fs *FS) OpenFile(
	ctx context.Context,
	req *fuse.OpenFileRequest) (*fuse.OpenFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathFor(req.Inode)
	if err != nil {
		return nil, err
	}
	if err := fs.core.Open(p); err != nil {
		return nil, translateErr(err)
	}

	fs.nextHandle++
	fs.fileHandles[fs.nextHandle] = struct{}{}
	return &fuse.OpenFileResponse{Handle: fs.nextHandle}, nil
}

func (fs *FS) ReadFile(
	ctx context.Context,
	req *fuse.ReadFileRequest) (*fuse.ReadFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathFor(req.Inode)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, req.Size)
	n, err := fs.core.Read(p, buf, uint64(req.Offset))
	if err != nil {
		return nil, translateErr(err)
	}
	return &fuse.ReadFileResponse{Data: buf[:n]}, nil
}

func (fs *FS) WriteFile(
	ctx context.Context,
	req *fuse.WriteFileRequest) (*fuse.WriteFileResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathFor(req.Inode)
	if err != nil {
		return nil, err
	}

	if _, err := fs.core.Write(p, req.Data, uint64(req.Offset)); err != nil {
		return nil, translateErr(err)
	}
	return &fuse.WriteFileResponse{}, nil
}

// SyncFile and FlushFile are no-ops: every Core mutation is already
// applied directly to the backing region, so there is nothing buffered
// to flush. Durability to the backing file is the mount command's
// responsibility (unix.Msync on SIGINT/SIGTERM and after unmount), not
// Core's.
func (fs *FS) SyncFile(
	ctx context.Context,
	req *fuse.SyncFileRequest) (*fuse.SyncFileResponse, error) {
	return &fuse.SyncFileResponse{}, nil
}

func (fs *FS) FlushFile(
	ctx context.Context,
	req *fuse.FlushFileRequest) (*fuse.FlushFileResponse, error) {
	return &fuse.FlushFileResponse{}, nil
}

func (fs *FS) ReleaseFileHandle(
	ctx context.Context,
	req *fuse.ReleaseFileHandleRequest) (*fuse.ReleaseFileHandleResponse, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.fileHandles, req.Handle)
	return &fuse.ReleaseFileHandleResponse{}, nil
}

// Rename and StatFS are not part of the pinned fuse.FileSystem
// interface's request/response vocabulary, which predates kernel
// rename/statfs passthrough. core.Core implements and tests both
// directly; these methods expose them to callers that hold an *FS (the
// mount command, or tests) without claiming to satisfy a kernel op the
// interface doesn't define.

func (fs *FS) Rename(oldParent fuse.InodeID, oldName string, newParent fuse.InodeID, newName string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParentPath, err := fs.pathFor(oldParent)
	if err != nil {
		return err
	}
	newParentPath, err := fs.pathFor(newParent)
	if err != nil {
		return err
	}

	oldPath := join(oldParentPath, oldName)
	newPath := join(newParentPath, newName)

	if err := fs.core.Rename(oldPath, newPath); err != nil {
		return translateErr(err)
	}

	fs.renameSubtree(oldPath, newPath)
	return nil
}

func (fs *FS) StatFS() (core.Statfs, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.core.Statfs()
}

var _ fuse.FileSystem = (*FS)(nil)

// checkInvariants re-derives pathToID from nodes and panics on mismatch,
// the pattern samples/memfs uses for its own inode table, then delegates
// to core.Core.CheckInvariants for the region's own structural sweep. The
// region-level sweep is a no-op unless the binary is built with -tags
// myfsdebug (see core/invariants_debug.go); the node-table check here is
// cheap enough to always run.
func checkInvariants(fs *FS) {
	if fs.nodes[fuse.RootInodeID] == nil {
		panic("root inode entry missing")
	}
	seen := make(map[string]fuse.InodeID, len(fs.pathToID))
	for id, n := range fs.nodes {
		if n == nil {
			continue
		}
		if other, ok := seen[n.path]; ok {
			panic(fmt.Sprintf("duplicate path in node table: %s (ids %d and %d)", n.path, other, id))
		}
		seen[n.path] = fuse.InodeID(id)
	}
	if len(seen) != len(fs.pathToID) {
		panic("pathToID and nodes disagree on cardinality")
	}
	fs.core.CheckInvariants()
}
