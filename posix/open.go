package posix

import (
	"golang.org/x/sys/unix"

	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/resolve"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// openAt resolves (dirfd, path), asks the base transport to Open the
// residual path, and binds the resulting transport into a fresh fd
// (mirroring __mxio_open_at + vopenat in unistd.c). O_CREAT|O_DIRECTORY
// is explicitly rejected, matching the "underspecified in POSIX"
// rationale in unistd.c's vopenat.
func (p *Process) openAt(dirfd int, path string, flags transport.OpenFlags, mode uint32) (int, error) {
	if path == "" {
		return -1, errnoErr(unix.EINVAL)
	}
	if flags&transport.OpenCreate != 0 && flags&transport.OpenDirectory != 0 {
		return -1, errnoErr(unix.EINVAL)
	}

	base, residual, serr := p.Resolver.Base(dirfd, path)
	if serr != nil {
		return -1, errnoErr(status.ToErrno(serr))
	}
	defer base.Release()

	t, serr := base.Transport.Open(residual, flags, mode)
	if serr != nil {
		return -1, errnoErr(status.ToErrno(serr))
	}

	var eflags transport.Flags
	if flags&transport.OpenNonblock != 0 {
		eflags |= transport.FlagNonblock
	}
	entry := fdtable.NewEntry(t, eflags)

	fd, dc, serr := p.Table.Bind(entry, -1, 0)
	if serr != nil {
		t.Close()
		return -1, errnoErr(unix.EMFILE)
	}
	p.logCloseErr(dc.Run())
	return fd, nil
}

// Open implements open(2).
func (p *Process) Open(path string, flags transport.OpenFlags, mode uint32) (int, error) {
	return p.openAt(resolve.AtFDCWD, path, flags, mode)
}

// OpenAt implements openat(2).
func (p *Process) OpenAt(dirfd int, path string, flags transport.OpenFlags, mode uint32) (int, error) {
	return p.openAt(dirfd, path, flags, mode)
}

// Creat implements creat(2): open with O_CREAT|O_WRONLY|O_TRUNC.
func (p *Process) Creat(path string, mode uint32) (int, error) {
	return p.Open(path, transport.OpenCreate|transport.OpenWriteOnly|transport.OpenTruncate, mode)
}

// Mkdir implements mkdir(2): open with O_CREAT|O_EXCL|O_RDWR and the
// directory bit forced into mode, then close immediately (spec.md §4
// mkdirat).
func (p *Process) Mkdir(path string, mode uint32) error {
	return p.MkdirAt(resolve.AtFDCWD, path, mode)
}

// MkdirAt implements mkdirat(2).
func (p *Process) MkdirAt(dirfd int, path string, mode uint32) error {
	const sIFDIR = 0o040000
	mode = (mode & 0o777) | sIFDIR

	base, residual, serr := p.Resolver.Base(dirfd, path)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	defer base.Release()

	t, serr := base.Transport.Open(residual, transport.OpenCreate|transport.OpenExclusive|transport.OpenReadWrite, mode)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	t.Close()
	return nil
}

// Close implements close(2) (spec.md §4.1 via unbind semantics, but
// close never waits for in-flight callers: it always detaches the slot,
// regardless of whether refcount > 1).
func (p *Process) Close(fd int) error {
	dc, serr := p.Table.Close(fd)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	if err := dc.Run(); err != nil {
		return errnoErr(status.ToErrno(err))
	}
	return nil
}
