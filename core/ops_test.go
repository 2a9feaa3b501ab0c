package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMknodAndGetattr(t *testing.T) {
	c := newTestCore(t, 1<<20)

	require.NoError(t, c.Mknod("/f.txt"))
	attr, err := c.Getattr("/f.txt", 7, 9)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), attr.Uid)
	assert.Equal(t, uint32(9), attr.Gid)
	assert.Equal(t, uint64(0), attr.Size)
	assert.Equal(t, uint32(1), attr.Nlink)
}

func TestMknodRejectsDuplicateName(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))
	err := c.Mknod("/f")
	assert.ErrorIs(t, err, ErrExist)
}

func TestMknodRejectsMissingParent(t *testing.T) {
	c := newTestCore(t, 1<<20)
	err := c.Mknod("/no/such/dir/f")
	assert.ErrorIs(t, err, ErrNoEnt)
}

func TestMkdirAndReaddir(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/a"))
	require.NoError(t, c.Mknod("/a/one"))
	require.NoError(t, c.Mkdir("/a/two"))

	entries, err := c.Readdir("/a")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byName := map[string]DirEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.False(t, byName["one"].IsDir)
	assert.True(t, byName["two"].IsDir)
}

func TestReaddirOnFileFails(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))
	_, err := c.Readdir("/f")
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestRmdirRequiresEmpty(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/a"))
	require.NoError(t, c.Mknod("/a/f"))

	err := c.Rmdir("/a")
	assert.ErrorIs(t, err, ErrNotEmpty)

	require.NoError(t, c.Unlink("/a/f"))
	require.NoError(t, c.Rmdir("/a"))

	_, _, err = c.Name("/a")
	assert.ErrorIs(t, err, ErrNoEnt)
}

func TestRmdirOnFileFails(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))
	err := c.Rmdir("/f")
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestUnlinkOnDirFails(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/d"))
	err := c.Unlink("/d")
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestUnlinkFreesSpaceAndRemovesEntry(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))
	_, err := c.Write("/f", []byte("some content"), 0)
	require.NoError(t, err)

	require.NoError(t, c.Unlink("/f"))
	entries, err := c.Readdir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteReadTruncate(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))

	n, err := c.Write("/f", []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	buf := make([]byte, 11)
	n, err = c.Read("/f", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf[:n]))

	require.NoError(t, c.Truncate("/f", 5))
	attr, err := c.Getattr("/f", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), attr.Size)

	buf = make([]byte, 5)
	n, err = c.Read("/f", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestWriteOnDirFails(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/d"))
	_, err := c.Write("/d", []byte("x"), 0)
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestOpenReportsMissing(t *testing.T) {
	c := newTestCore(t, 1<<20)
	assert.ErrorIs(t, c.Open("/missing"), ErrNoEnt)

	require.NoError(t, c.Mknod("/f"))
	assert.NoError(t, c.Open("/f"))
}

func TestUtimensOverwritesBothTimestamps(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))

	at := time.Unix(111, 0).UTC()
	mt := time.Unix(222, 0).UTC()
	require.NoError(t, c.Utimens("/f", at, mt))

	attr, err := c.Getattr("/f", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, mt, attr.Mtime)
}

func TestStatfsReportsFixedGeometry(t *testing.T) {
	c := newTestCore(t, 1<<20)
	st, err := c.Statfs()
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), st.Bsize)
	assert.Equal(t, uint32(255), st.NameMax)
	assert.Equal(t, st.Bavail, st.Bfree)

	require.NoError(t, c.Mknod("/f"))
	_, err = c.Write("/f", make([]byte, 4096), 0)
	require.NoError(t, err)

	st2, err := c.Statfs()
	require.NoError(t, err)
	assert.Less(t, st2.Bfree, st.Bfree, "writing data must reduce free blocks")
}

func TestRenameMovesAndUpdatesParents(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/a"))
	require.NoError(t, c.Mkdir("/b"))
	require.NoError(t, c.Mknod("/a/f"))

	require.NoError(t, c.Rename("/a/f", "/b/g"))

	_, _, err := c.Name("/a/f")
	assert.ErrorIs(t, err, ErrNoEnt)

	_, isDir, err := c.Name("/b/g")
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestRenameOverwritesExistingFile(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/a"))
	_, err := c.Write("/a", []byte("AAAA"), 0)
	require.NoError(t, err)
	require.NoError(t, c.Mknod("/b"))

	require.NoError(t, c.Rename("/a", "/b"))

	buf := make([]byte, 4)
	n, err := c.Read("/b", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", string(buf[:n]))

	_, _, err = c.Name("/a")
	assert.ErrorIs(t, err, ErrNoEnt)
}

func TestRenameRejectsFileOverDirMismatch(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))
	require.NoError(t, c.Mkdir("/d"))

	err := c.Rename("/f", "/d")
	assert.ErrorIs(t, err, ErrIsDir)
}

func TestRenameRejectsNonEmptyDirTarget(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/a"))
	require.NoError(t, c.Mkdir("/b"))
	require.NoError(t, c.Mknod("/b/f"))

	err := c.Rename("/a", "/b")
	assert.ErrorIs(t, err, ErrNotEmpty)
}

func TestRenameIntoSelfIsNoop(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mknod("/f"))
	assert.NoError(t, c.Rename("/f", "/f"))
}

func TestRenameRejectsDirIntoOwnDescendant(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/a"))
	require.NoError(t, c.Mkdir("/a/b"))

	err := c.Rename("/a", "/a/b/c")
	assert.Error(t, err)
}

func TestEnsureMountedOnFreshOpenedBufferIsIdempotent(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.ensureMounted())
	require.NoError(t, c.ensureMounted())
}
