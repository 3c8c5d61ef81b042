// Package status defines the kernel error taxonomy used throughout the
// fdio core and the translation between that taxonomy and POSIX errno.
//
// The sentinel errors are compared with errors.Is rather than matched by
// string, the same tradeoff pkg/syserror makes over plain errno values:
// fast, allocation-free comparisons on the hot path of every syscall
// emulation.
package status

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Status is a kernel-level result: nil on success, one of the sentinel
// errors below (or an error wrapping one of them) otherwise.
type Status = error

// Sentinel kernel statuses, matching the taxonomy in spec.md §7.
var (
	ErrNotFound      = errors.New("status: not found")
	ErrNoMemory      = errors.New("status: no memory")
	ErrInvalidArgs   = errors.New("status: invalid args")
	ErrBufferTooSmall = errors.New("status: buffer too small")
	ErrTimedOut      = errors.New("status: timed out")
	ErrAlreadyExists = errors.New("status: already exists")
	ErrRemoteClosed  = errors.New("status: remote closed")
	ErrBadPath       = errors.New("status: bad path")
	ErrIO            = errors.New("status: I/O error")
	ErrNotDir        = errors.New("status: not a directory")
	ErrNotSupported  = errors.New("status: not supported")
	ErrOutOfRange    = errors.New("status: out of range")
	ErrNoResources   = errors.New("status: no resources")
	ErrBadHandle     = errors.New("status: bad handle")
	ErrAccessDenied  = errors.New("status: access denied")
	ErrShouldWait    = errors.New("status: should wait")
	ErrFileTooBig    = errors.New("status: file too big")
	ErrNoSpace       = errors.New("status: no space")
	ErrUnavailable   = errors.New("status: unavailable")
)

// ToErrno translates a kernel Status into the POSIX errno that a syscall
// emulation should surface to its caller. Unrecognized statuses map to
// EIO, the same default mxio_status_to_errno falls back to.
func ToErrno(s Status) unix.Errno {
	switch {
	case s == nil:
		return 0
	case errors.Is(s, ErrNotFound):
		return unix.ENOENT
	case errors.Is(s, ErrNoMemory):
		return unix.ENOMEM
	case errors.Is(s, ErrInvalidArgs):
		return unix.EINVAL
	case errors.Is(s, ErrBufferTooSmall):
		return unix.EINVAL
	case errors.Is(s, ErrTimedOut):
		return unix.ETIMEDOUT
	case errors.Is(s, ErrAlreadyExists):
		return unix.EEXIST
	case errors.Is(s, ErrRemoteClosed):
		return unix.ENOTCONN
	case errors.Is(s, ErrBadPath):
		return unix.ENAMETOOLONG
	case errors.Is(s, ErrIO):
		return unix.EIO
	case errors.Is(s, ErrNotDir):
		return unix.ENOTDIR
	case errors.Is(s, ErrNotSupported):
		return unix.ENOTSUP
	case errors.Is(s, ErrOutOfRange):
		return unix.EINVAL
	case errors.Is(s, ErrNoResources):
		return unix.ENOMEM
	case errors.Is(s, ErrBadHandle):
		return unix.EBADF
	case errors.Is(s, ErrAccessDenied):
		return unix.EACCES
	case errors.Is(s, ErrShouldWait):
		return unix.EAGAIN
	case errors.Is(s, ErrFileTooBig):
		return unix.EFBIG
	case errors.Is(s, ErrNoSpace):
		return unix.ENOSPC
	case errors.Is(s, ErrUnavailable):
		return unix.EBUSY
	default:
		return unix.EIO
	}
}

// Errno is the result of a POSIX call: a negative sentinel (-1) paired
// with an errno, or a non-negative return value with errno 0. Call sites
// mirror the C convention so the posix package's return types map
// directly onto the calls they emulate.
type Errno struct {
	Ret   int64
	Errno unix.Errno
}

// FromStatus builds the (-1, errno) pair for a failing kernel Status, or
// the (ret, 0) pair for success.
func FromStatus(s Status, ret int64) Errno {
	if s == nil {
		return Errno{Ret: ret}
	}
	return Errno{Ret: -1, Errno: ToErrno(s)}
}

// IsShouldWait reports whether s is the retry-later sentinel.
func IsShouldWait(s Status) bool {
	return errors.Is(s, ErrShouldWait)
}

// IsShouldWaitOrTimedOut reports whether s is nil or the timed-out
// sentinel — the two outcomes spec.md §4.5 treats as "pending signals may
// still be meaningful" rather than as a hard failure to propagate.
func IsShouldWaitOrTimedOut(s Status) bool {
	return s == nil || errors.Is(s, ErrTimedOut)
}
