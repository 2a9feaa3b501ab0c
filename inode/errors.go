package inode

import "errors"

// Errors returned by this package. The core package translates these to
// the appropriate core.Errno at the operation-layer boundary.
var (
	ErrNameTooLong = errors.New("inode: name exceeds maximum length")
	ErrNoSpace     = errors.New("inode: allocator out of space")
	ErrExists      = errors.New("inode: child already exists")
	ErrNotFound    = errors.New("inode: child not found")
	ErrNotEmpty    = errors.New("inode: directory not empty")
)
