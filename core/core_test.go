package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestCore(t *testing.T, size int) *Core {
	t.Helper()
	buf := make([]byte, size)
	c, err := Open(buf, fixedClock(time.Unix(1000, 0).UTC()))
	require.NoError(t, err)
	return c
}

func TestOpenBootstrapsFreshRegion(t *testing.T) {
	c := newTestCore(t, 1<<20)

	attr, err := c.Getattr("/", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), attr.Nlink)

	entries, err := c.Readdir("/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Re-opening the same buffer must not re-bootstrap: it is a remount of the
// tree that is already there.
func TestOpenOnAlreadyInitialisedRegionIsARemount(t *testing.T) {
	buf := make([]byte, 1<<20)
	c1, err := Open(buf, fixedClock(time.Unix(1, 0).UTC()))
	require.NoError(t, err)
	require.NoError(t, c1.Mkdir("/keep"))

	c2, err := Open(buf, fixedClock(time.Unix(2, 0).UTC()))
	require.NoError(t, err)

	attr, err := c2.Getattr("/keep", 0, 0)
	require.NoError(t, err)
	assert.True(t, attr.Mode != 0)
}

func TestRootOffsetStableAcrossRemount(t *testing.T) {
	buf := make([]byte, 1<<20)
	c1, err := Open(buf, fixedClock(time.Now()))
	require.NoError(t, err)
	off1, err := c1.RootOffset()
	require.NoError(t, err)

	c2, err := Open(buf, fixedClock(time.Now()))
	require.NoError(t, err)
	off2, err := c2.RootOffset()
	require.NoError(t, err)

	assert.Equal(t, off1, off2)
}

func TestNameResolvesOffsetAndDirness(t *testing.T) {
	c := newTestCore(t, 1<<20)
	require.NoError(t, c.Mkdir("/d"))
	require.NoError(t, c.Mknod("/d/f"))

	rootOff, err := c.RootOffset()
	require.NoError(t, err)

	off, isDir, err := c.Name("/")
	require.NoError(t, err)
	assert.Equal(t, rootOff, off)
	assert.True(t, isDir)

	_, isDir, err = c.Name("/d")
	require.NoError(t, err)
	assert.True(t, isDir)

	_, isDir, err = c.Name("/d/f")
	require.NoError(t, err)
	assert.False(t, isDir)

	_, _, err = c.Name("/nope")
	assert.ErrorIs(t, err, ErrNoEnt)
}
