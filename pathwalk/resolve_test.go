package pathwalk

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AriathGonzalez/myfs/alloc"
	"github.com/AriathGonzalez/myfs/inode"
	"github.com/AriathGonzalez/myfs/region"
)

// buildTree lays out:
//
//	/
//	/a/           (dir)
//	/a/b.txt      (file)
//	/c.txt        (file)
func buildTree(t *testing.T) (*region.Region, uint64) {
	t.Helper()
	r := region.New(make([]byte, 1<<20))
	sb := region.LoadSuperblock(r)

	now := time.Now()
	rootOff := uint64(region.SuperblockSize)
	childrenOff := rootOff + region.InodeSize
	freeStart := childrenOff + inode.ChildrenArraySpan(region.InitialChildCapacity)

	inode.BootstrapRoot(r, rootOff, childrenOff, now)
	alloc.Bootstrap(r, sb, freeStart)
	a := alloc.New(r, sb)
	root := inode.At(r, rootOff)

	dirA, err := inode.Create(r, a, region.TypeDir, "a", now)
	require.NoError(t, err)
	require.NoError(t, dirA.InitDir(a, root.Off))
	require.NoError(t, root.AddChild(a, dirA.Off))

	fileB, err := inode.Create(r, a, region.TypeFile, "b.txt", now)
	require.NoError(t, err)
	require.NoError(t, dirA.AddChild(a, fileB.Off))

	fileC, err := inode.Create(r, a, region.TypeFile, "c.txt", now)
	require.NoError(t, err)
	require.NoError(t, root.AddChild(a, fileC.Off))

	return r, root.Off
}

func TestResolveSimplePaths(t *testing.T) {
	r, rootOff := buildTree(t)

	ino, err := Resolve(r, rootOff, "/", 0)
	require.NoError(t, err)
	assert.True(t, ino.IsDir())

	ino, err = Resolve(r, rootOff, "/a", 0)
	require.NoError(t, err)
	assert.True(t, ino.IsDir())
	assert.Equal(t, "a", ino.Name())

	ino, err = Resolve(r, rootOff, "/a/b.txt", 0)
	require.NoError(t, err)
	assert.True(t, ino.IsFile())
	assert.Equal(t, "b.txt", ino.Name())
}

func TestResolveMissingComponent(t *testing.T) {
	r, rootOff := buildTree(t)

	_, err := Resolve(r, rootOff, "/nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(r, rootOff, "/a/nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveThroughNonDirectoryFails(t *testing.T) {
	r, rootOff := buildTree(t)

	_, err := Resolve(r, rootOff, "/c.txt/anything", 0)
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestResolveDotAndDotDot(t *testing.T) {
	r, rootOff := buildTree(t)

	ino, err := Resolve(r, rootOff, "/a/./b.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", ino.Name())

	ino, err = Resolve(r, rootOff, "/a/../c.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "c.txt", ino.Name())

	// the root's ".." is itself.
	ino, err = Resolve(r, rootOff, "/../a", 0)
	require.NoError(t, err)
	assert.Equal(t, "a", ino.Name())
}

func TestResolveSkipTailReturnsParent(t *testing.T) {
	r, rootOff := buildTree(t)

	parent, err := Resolve(r, rootOff, "/a/b.txt", 1)
	require.NoError(t, err)
	assert.True(t, parent.IsDir())
	assert.Equal(t, "a", parent.Name())

	parent, err = Resolve(r, rootOff, "/c.txt", 1)
	require.NoError(t, err)
	assert.Equal(t, rootOff, parent.Off)
}

func TestResolveRejectsOverlongComponent(t *testing.T) {
	r, rootOff := buildTree(t)

	long := "/" + strings.Repeat("x", region.MaxNameLen+1)
	_, err := Resolve(r, rootOff, long, 0)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, "b.txt", Split("/a/b.txt"))
	assert.Equal(t, "a", Split("/a"))
	assert.Equal(t, "", Split("/"))
}
