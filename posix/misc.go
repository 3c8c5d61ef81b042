package posix

import (
	"golang.org/x/sys/unix"

	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/resolve"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
	"github.com/donball360/magenta/transports/pipeio"
)

// Pipe implements pipe(2): two fds bound to the two end transports of one
// in-memory byte queue, fd[0] the read end and fd[1] the write end
// (spec.md §4 "pipe").
func (p *Process) Pipe() (readFD int, writeFD int, err error) {
	return p.pipe2(0)
}

// Pipe2 implements pipe2(2); the only flag recognized is O_NONBLOCK,
// applied to both ends' descriptor flags.
func (p *Process) Pipe2(flags int) (readFD int, writeFD int, err error) {
	if flags&^unix.O_NONBLOCK != 0 {
		return -1, -1, errnoErr(unix.EINVAL)
	}
	return p.pipe2(flags)
}

func (p *Process) pipe2(flags int) (int, int, error) {
	read, write := pipeio.Pair(pipeio.DefaultSize)

	var tflags transport.Flags
	if flags&unix.O_NONBLOCK != 0 {
		tflags = transport.FlagNonblock
	}

	readEntry := fdtable.NewEntry(read, tflags)
	rfd, rdc, serr := p.Table.Bind(readEntry, -1, 0)
	if serr != nil {
		read.Close()
		write.Close()
		return -1, -1, errnoErr(unix.EMFILE)
	}
	p.logCloseErr(rdc.Run())

	writeEntry := fdtable.NewEntry(write, tflags)
	wfd, wdc, serr := p.Table.Bind(writeEntry, -1, 0)
	if serr != nil {
		if dc, closeErr := p.Table.Close(rfd); closeErr == nil {
			p.logCloseErr(dc.Run())
		}
		write.Close()
		return -1, -1, errnoErr(unix.EMFILE)
	}
	p.logCloseErr(wdc.Run())

	return rfd, wfd, nil
}

// GetCWD implements getcwd(2): the normalized path string cached in
// cwd.State, no transport round trip needed (spec.md §4.3, §3 "CWD
// state").
func (p *Process) GetCWD() (string, error) {
	path := p.CWD.Path()
	if path == "" {
		return "", errnoErr(unix.ENOENT)
	}
	return path, nil
}

// ChDir implements chdir(2): resolve the target, require it be a
// directory, install it as the new cwd, and close the displaced entry
// after both locks are released (spec.md §4.6 chdir).
func (p *Process) ChDir(path string) error {
	base, residual, serr := p.Resolver.Base(resolve.AtFDCWD, path)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	defer base.Release()

	t, serr := base.Transport.Open(residual, transport.OpenDirectory, 0)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}

	entry := fdtable.NewEntry(t, 0)
	old := p.CWD.Replace(joinCWDPath(p.CWD.Path(), path), entry)
	if old != nil {
		if old.Release() {
			p.logCloseErr(old.Transport.Close())
		}
	}
	return nil
}

// joinCWDPath resolves path against the current cwd string the way
// update_cwd_path expects to be called: absolute paths pass through
// untouched, relative paths are handed along with the existing cwd so
// cwd.State can normalize '.'/'..' segments itself.
func joinCWDPath(current, path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path
	}
	if current == "/" {
		return "/" + path
	}
	return current + "/" + path
}

// IsATTY implements isatty(3): queried via a PosixIoctl probe, matching
// unistd.c's isatty (a TIOCGWINSZ-style probe standing in for a real
// tty ioctl since no terminal driver is modeled here).
func (p *Process) IsATTY(fd int) (bool, error) {
	e := p.Table.Lookup(fd)
	if e == nil {
		return false, errnoErr(unix.EBADF)
	}
	defer e.Release()

	serr := e.Transport.PosixIoctl(unix.TCGETS, 0)
	if serr != nil {
		return false, nil
	}
	return true, nil
}

// Ioctl implements ioctl(2): dispatched straight to the transport's
// Ioctl vtable entry (spec.md §4 "ioctl"); in/out buffer sizing is the
// caller's responsibility, matching mxio_ioctl's raw passthrough.
func (p *Process) Ioctl(fd int, op int, in []byte, outLen int) ([]byte, error) {
	e := p.Table.Lookup(fd)
	if e == nil {
		return nil, errnoErr(unix.EBADF)
	}
	defer e.Release()

	out, serr := e.Transport.Ioctl(op, in, outLen)
	if serr != nil {
		return nil, errnoErr(status.ToErrno(serr))
	}
	return out, nil
}

// PosixIoctl implements the narrower posix_ioctl entry point used for
// requests that only need an inline argument, not a buffer pair
// (spec.md §4 "ioctl", unistd.c's posix_ioctl wrapping TIOCGWINSZ and
// friends).
func (p *Process) PosixIoctl(fd int, req int, arg uintptr) error {
	e := p.Table.Lookup(fd)
	if e == nil {
		return errnoErr(unix.EBADF)
	}
	defer e.Release()

	serr := e.Transport.PosixIoctl(req, arg)
	return errnoErr(status.ToErrno(serr))
}
