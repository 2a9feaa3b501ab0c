// Package region implements the position-independent offset arithmetic that
// every other package in myfs builds on: the mmap'd (or, in tests,
// heap-backed) byte area handed to the core at mount time, addressed purely
// by byte offset rather than by native pointer.
//
// No field persisted inside a Region may encode a process address. The only
// sanctioned way to cross between an offset and a live byte slice is through
// the methods on Region.
package region

import (
	"encoding/binary"
	"fmt"
)

// NullOffset is reserved to mean "no reference." Nothing is ever placed at
// offset 0; the superblock occupies [0, SuperblockSize) but is addressed
// directly by the Region, never referenced via an offset field.
const NullOffset = 0

// Region is a position-independent view over a contiguous byte area. The
// area may be backed by a real mmap mapping (see cmd/mountmyfs) or, in
// tests, by a plain make([]byte, size) slice — the core never knows or
// cares which, so a region can be reattached at a fresh virtual address
// on every remount without losing anything.
type Region struct {
	buf []byte
}

// New wraps an existing byte slice. The slice is not copied; callers are
// responsible for keeping it alive for the lifetime of the Region.
func New(buf []byte) *Region {
	return &Region{buf: buf}
}

// Size returns the total region size in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.buf))
}

// valid reports whether [off, off+n) is a legal, in-bounds reference:
// 0 < off < region_size and off is reachable from the base.
func (r *Region) valid(off uint64, n uint64) bool {
	if off == NullOffset {
		return false
	}
	return r.inBounds(off, n)
}

// inBounds reports whether [off, off+n) lies inside the region. Unlike
// valid it accepts offset 0, where the superblock is read and written
// directly through the Region.
func (r *Region) inBounds(off uint64, n uint64) bool {
	if n == 0 {
		return off < r.Size()
	}
	end := off + n
	return end > off && end <= r.Size()
}

// Slice returns the n-byte window starting at off, aliased to the region's
// backing array. The caller must not retain the returned slice beyond the
// current entry point: a remount can reattach the region at a different
// virtual address.
func (r *Region) Slice(off, n uint64) ([]byte, error) {
	if !r.inBounds(off, n) {
		return nil, fmt.Errorf("region: offset %d length %d out of bounds (size %d)", off, n, r.Size())
	}
	return r.buf[off : off+n], nil
}

// MustSlice is Slice but panics on an out-of-bounds reference. It is used at
// call sites where the offset was just computed from trusted on-region
// metadata (e.g. walking a chain whose Next field we ourselves wrote) and a
// bounds failure indicates region corruption rather than a caller error.
// Nothing in the module recovers this panic: it propagates out of the Core
// entry point that triggered it and is not reported as EFAULT.
func (r *Region) MustSlice(off, n uint64) []byte {
	b, err := r.Slice(off, n)
	if err != nil {
		panic(err)
	}
	return b
}

func (r *Region) ReadUint32(off uint64) uint32 {
	return binary.LittleEndian.Uint32(r.MustSlice(off, 4))
}

func (r *Region) WriteUint32(off uint64, v uint32) {
	binary.LittleEndian.PutUint32(r.MustSlice(off, 4), v)
}

func (r *Region) ReadUint64(off uint64) uint64 {
	return binary.LittleEndian.Uint64(r.MustSlice(off, 8))
}

func (r *Region) WriteUint64(off uint64, v uint64) {
	binary.LittleEndian.PutUint64(r.MustSlice(off, 8), v)
}

func (r *Region) ReadInt64(off uint64) int64 {
	return int64(r.ReadUint64(off))
}

func (r *Region) WriteInt64(off uint64, v int64) {
	r.WriteUint64(off, uint64(v))
}

// Zero clears n bytes starting at off.
func (r *Region) Zero(off, n uint64) {
	b := r.MustSlice(off, n)
	for i := range b {
		b[i] = 0
	}
}

// CopyIn copies src into the region at off.
func (r *Region) CopyIn(off uint64, src []byte) {
	if len(src) == 0 {
		return
	}
	copy(r.MustSlice(off, uint64(len(src))), src)
}

// CopyOut copies n bytes starting at off into dst, returning the number of
// bytes copied (== n, always, since this is only called with bounds already
// validated by the caller's own bookkeeping).
func (r *Region) CopyOut(dst []byte, off uint64) int {
	return copy(dst, r.MustSlice(off, uint64(len(dst))))
}

// Reachable reports whether off is a legal non-null offset of at least n
// bytes, without panicking.
func (r *Region) Reachable(off, n uint64) bool {
	return r.valid(off, n)
}
