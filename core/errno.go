package core

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/AriathGonzalez/myfs/inode"
	"github.com/AriathGonzalez/myfs/pathwalk"
)

// Errno is the error vocabulary every Core operation returns: a thin
// wrapper around a golang.org/x/sys/unix errno constant, so fuseadapter
// can hand it straight to the kernel without a second translation table.
type Errno struct {
	Errno unix.Errno
	msg   string
}

func newErrno(e unix.Errno, msg string) Errno {
	return Errno{Errno: e, msg: msg}
}

func (e Errno) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.Errno.Error()
}

// Is lets errors.Is(err, unix.ENOENT) (or errors.Is(err, core.ErrNoEnt))
// work against a wrapped Errno.
func (e Errno) Is(target error) bool {
	var other Errno
	if errors.As(target, &other) {
		return e.Errno == other.Errno
	}
	var un unix.Errno
	if errors.As(target, &un) {
		return e.Errno == un
	}
	return false
}

var (
	ErrNoEnt       = newErrno(unix.ENOENT, "no such file or directory")
	ErrNotDir      = newErrno(unix.ENOTDIR, "not a directory")
	ErrIsDir       = newErrno(unix.EISDIR, "is a directory")
	ErrNotEmpty    = newErrno(unix.ENOTEMPTY, "directory not empty")
	ErrExist       = newErrno(unix.EEXIST, "file exists")
	ErrNameTooLong = newErrno(unix.ENAMETOOLONG, "name too long")
	ErrNoSpace     = newErrno(unix.ENOSPC, "no space left on device")
	ErrNoMem       = newErrno(unix.ENOMEM, "cannot allocate memory")
	ErrFault       = newErrno(unix.EFAULT, "bad address")
	ErrInval       = newErrno(unix.EINVAL, "invalid argument")
)

// translate maps the typed errors surfaced by inode and pathwalk onto the
// core's Errno vocabulary. Any error core itself returns is already an
// Errno and passes through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var e Errno
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, pathwalk.ErrNotFound):
		return ErrNoEnt
	case errors.Is(err, pathwalk.ErrNotDir):
		return ErrNotDir
	case errors.Is(err, pathwalk.ErrNameTooLong):
		return ErrNameTooLong
	case errors.Is(err, inode.ErrNameTooLong):
		return ErrNameTooLong
	case errors.Is(err, inode.ErrNoSpace):
		return ErrNoSpace
	case errors.Is(err, inode.ErrExists):
		return ErrExist
	case errors.Is(err, inode.ErrNotFound):
		return ErrNoEnt
	case errors.Is(err, inode.ErrNotEmpty):
		return ErrNotEmpty
	default:
		return ErrInval
	}
}
