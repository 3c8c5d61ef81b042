// Package resolve implements (dirfd, path) resolution against the root
// and cwd transports, including the ...at-family dirfd convention
// (spec.md §4.3), grounded on gvisor's vfs.ResolvingPath generalized down
// to this module's simpler "no symlinks, no mounts" transport model:
// resolution here only ever needs to pick a base transport and hand the
// residual string to that transport's own Open.
package resolve

import (
	"strings"

	"github.com/donball360/magenta/cwd"
	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/status"
)

// AtFDCWD is the dirfd sentinel meaning "resolve relative to the cwd",
// mirroring AT_FDCWD.
const AtFDCWD = -100

// Resolver bundles the root transport, cwd state, and fd table that path
// resolution needs to pick a base transport (spec.md §4.3).
type Resolver struct {
	Root  *fdtable.Entry
	CWD   *cwd.State
	Table *fdtable.Table
}

// Base resolves (dirfd, path) to a base transport entry (caller-owned,
// release when done) and the residual path to hand to that transport's
// Open (spec.md §4.3 resolve). An absolute path strips its leading '/'
// and bases off root; "" after stripping becomes ".". AT_FDCWD bases off
// cwd. A non-negative dirfd bases off that fd's transport. Anything else
// fails EBADF.
func (r *Resolver) Base(dirfd int, path string) (base *fdtable.Entry, residual string, err status.Status) {
	if len(path) > 0 && path[0] == '/' {
		r.Root.IncRef()
		residual = path[1:]
		if residual == "" {
			residual = "."
		}
		return r.Root, residual, nil
	}
	if dirfd == AtFDCWD {
		return r.CWD.Entry(), path, nil
	}
	if dirfd >= 0 {
		e := r.Table.Lookup(dirfd)
		if e == nil {
			return nil, "", status.ErrBadHandle
		}
		return e, path, nil
	}
	return nil, "", status.ErrBadHandle
}

// Container resolves (dirfd, path) to the parent directory transport and
// the leaf name, used by unlink/unlinkat and similar container-level
// operations (spec.md §4.3 resolve_container). Trailing slashes are
// stripped before splitting; a path with no remaining '/' yields parent
// "." and the whole string as leaf. An empty leaf after stripping fails
// EINVAL.
func (r *Resolver) Container(dirfd int, path string) (dirpath string, leaf string, err status.Status) {
	if path == "" {
		return "", "", status.ErrInvalidArgs
	}

	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "", "", status.ErrInvalidArgs
	}

	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 {
		return ".", trimmed, nil
	}
	dirpath = trimmed[:idx]
	leaf = trimmed[idx+1:]
	if dirpath == "" {
		dirpath = "/"
	}
	if leaf == "" {
		return "", "", status.ErrInvalidArgs
	}
	return dirpath, leaf, nil
}

// SameOrigin reports whether oldpath and newpath agree on absolute-vs-
// relative, which two-path operations (rename/link) require (spec.md
// §4.8): both absolute or both relative, never mixed.
func SameOrigin(oldpath, newpath string) bool {
	oldAbs := len(oldpath) > 0 && oldpath[0] == '/'
	newAbs := len(newpath) > 0 && newpath[0] == '/'
	return oldAbs == newAbs
}
