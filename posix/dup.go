package posix

import (
	"golang.org/x/sys/unix"

	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// dup is the shared implementation behind dup/dup2/dup3/F_DUPFD (spec.md
// §4.1 dup, unistd.c's mxio_dup).
func (p *Process) dup(oldfd, newfd, startingFD int) (int, error) {
	fd, dc, serr := p.Table.Dup(oldfd, newfd, startingFD)
	if serr != nil {
		return -1, errnoErr(status.ToErrno(serr))
	}
	p.logCloseErr(dc.Run())
	return fd, nil
}

// Dup implements dup(2).
func (p *Process) Dup(oldfd int) (int, error) {
	return p.dup(oldfd, -1, 0)
}

// Dup2 implements dup2(2). dup2(a, a) is a documented no-op that returns
// a without touching the table (spec.md §8 property 4).
func (p *Process) Dup2(oldfd, newfd int) (int, error) {
	if oldfd == newfd {
		if e := p.Table.Lookup(oldfd); e != nil {
			e.Release()
			return oldfd, nil
		}
		return -1, errnoErr(unix.EBADF)
	}
	return p.dup(oldfd, newfd, 0)
}

// Dup3 implements dup3(2). Unlike dup2, the same-fd case is an error, and
// only O_CLOEXEC may be set in flags (spec.md §8 property 4, §6 dup3).
func (p *Process) Dup3(oldfd, newfd, flags int) (int, error) {
	if oldfd == newfd {
		return -1, errnoErr(unix.EINVAL)
	}
	if flags != 0 && flags != unix.O_CLOEXEC {
		return -1, errnoErr(unix.EINVAL)
	}
	return p.dup(oldfd, newfd, 0)
}

// fcntl commands recognized by Fcntl (spec.md §6).
const (
	FDupFD        = unix.F_DUPFD
	FDupFDCloexec = unix.F_DUPFD_CLOEXEC
	FGetFD        = unix.F_GETFD
	FSetFD        = unix.F_SETFD
	FGetFL        = unix.F_GETFL
	FSetFL        = unix.F_SETFL
	FGetOwn       = unix.F_GETOWN
	FSetOwn       = unix.F_SETOWN
	FGetLK        = unix.F_GETLK
	FSetLK        = unix.F_SETLK
	FSetLKW       = unix.F_SETLKW
)

// Fcntl implements fcntl(2) for the commands spec.md §6 recognizes;
// F_GETOWN/F_SETOWN and the lock commands return ENOSYS, matching
// unistd.c's "TODO(kulakowski) Socket support" / "Advisory file locking
// support" stubs — this module declares locking and socket ownership
// out of scope (spec.md §1 non-goals) rather than silently no-op them.
func (p *Process) Fcntl(fd, cmd int, arg int) (int, error) {
	switch cmd {
	case FDupFD, FDupFDCloexec:
		return p.dup(fd, -1, arg)
	case FGetFD:
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, errnoErr(unix.EBADF)
		}
		defer e.Release()
		flags := 0
		if e.Flags()&transport.FlagCloexec != 0 {
			flags |= unix.FD_CLOEXEC
		}
		return flags, nil
	case FSetFD:
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, errnoErr(unix.EBADF)
		}
		defer e.Release()
		f := e.Flags() &^ transport.FlagCloexec
		if arg&unix.FD_CLOEXEC != 0 {
			f |= transport.FlagCloexec
		}
		e.SetFlags(f)
		return 0, nil
	case FGetFL:
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, errnoErr(unix.EBADF)
		}
		defer e.Release()
		st := 0
		if e.Flags()&transport.FlagNonblock != 0 {
			st |= unix.O_NONBLOCK
		}
		return st, nil
	case FSetFL:
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, errnoErr(unix.EBADF)
		}
		defer e.Release()
		f := e.Flags() &^ transport.FlagNonblock
		if arg&unix.O_NONBLOCK != 0 {
			f |= transport.FlagNonblock
		}
		e.SetFlags(f)
		return 0, nil
	case FGetOwn, FSetOwn, FGetLK, FSetLK, FSetLKW:
		return -1, errnoErr(unix.ENOSYS)
	default:
		return -1, errnoErr(unix.EINVAL)
	}
}
