package fuseadapter

import "unsafe"

// Directory entry type tags, matching the d_type values used by
// fuse_dirent / getdents64.
const (
	dtReg byte = 8
	dtDir byte = 4
)

// appendDirent encodes one directory entry in the fuse_dirent wire
// format (ino, off, namelen, type, name, padding to 8-byte alignment)
// into buf, returning the number of bytes written, or zero if it would
// not fit. The layout mirrors what upstream fuse_dirent expects; it is
// reimplemented here directly rather than through a helper because this
// snapshot's fuseutil package does not expose one that compiles against
// the request/response FileSystem interface used by this adapter.
func appendDirent(buf []byte, ino uint64, off uint64, direntType byte, name string) int {
	type direntHeader struct {
		ino     uint64
		off     uint64
		namelen uint32
		typ     uint32
	}

	const headerSize = 8 + 8 + 4 + 4
	const alignment = 8

	padLen := 0
	if r := len(name) % alignment; r != 0 {
		padLen = alignment - r
	}

	total := headerSize + len(name) + padLen
	if total > len(buf) {
		return 0
	}

	h := direntHeader{ino: ino, off: off, namelen: uint32(len(name)), typ: uint32(direntType)}
	n := copy(buf, (*[headerSize]byte)(unsafe.Pointer(&h))[:])
	n += copy(buf[n:], name)
	if padLen > 0 {
		var zero [alignment]byte
		n += copy(buf[n:], zero[:padLen])
	}
	return n
}
