// Package pathwalk resolves absolute, '/'-separated paths against an inode
// tree, with '.' and '..' resolved against slot 0 of each directory's
// children array.
package pathwalk

import (
	"errors"
	"strings"

	"github.com/AriathGonzalez/myfs/inode"
	"github.com/AriathGonzalez/myfs/region"
)

var (
	ErrNotFound    = errors.New("pathwalk: no such file or directory")
	ErrNotDir      = errors.New("pathwalk: not a directory")
	ErrNameTooLong = errors.New("pathwalk: name exceeds maximum length")
)

// tokenize splits path on '/', dropping empty segments (so both a leading
// and a trailing slash, and any run of repeated slashes, are ignored).
func tokenize(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve walks path from the root, skipping the final skipTail tokens
// (skipTail is 0 to resolve path itself, or 1 to resolve path's parent
// directory, leaving the last component to the caller — the shape every
// create/delete/rename site needs). It rejects traversal through a
// non-directory and reports a missing component with ErrNotFound.
func Resolve(r *region.Region, rootOff uint64, path string, skipTail int) (inode.Inode, error) {
	tokens := tokenize(path)
	if skipTail > 0 && skipTail <= len(tokens) {
		tokens = tokens[:len(tokens)-skipTail]
	} else if skipTail > 0 {
		tokens = nil
	}

	cur := inode.At(r, rootOff)
	for _, tok := range tokens {
		if len(tok) > region.MaxNameLen {
			return inode.Inode{}, ErrNameTooLong
		}
		if !cur.IsDir() {
			return inode.Inode{}, ErrNotDir
		}

		switch tok {
		case ".":
			continue
		case "..":
			parent := cur.Parent()
			if parent == region.NullOffset {
				continue // root's ".." is itself
			}
			cur = inode.At(r, parent)
		default:
			childOff, _, err := cur.Lookup(tok)
			if err != nil {
				return inode.Inode{}, ErrNotFound
			}
			cur = inode.At(r, childOff)
		}
	}

	return cur, nil
}

// Split returns a path's final component, the part Resolve(path, 1) leaves
// for the caller to handle.
func Split(path string) string {
	tokens := tokenize(path)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}
