package posix

import (
	"golang.org/x/sys/unix"

	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// Read implements read(2): a blocking-retry stream read (spec.md §4.4,
// unistd.c's read()).
func (p *Process) Read(fd int, buf []byte) (int, error) {
	return p.blockingRetry(fd, transport.EventReadable, func() (int, status.Status) {
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, status.ErrBadHandle
		}
		defer e.Release()
		return e.Transport.Read(buf)
	})
}

// Write implements write(2).
func (p *Process) Write(fd int, buf []byte) (int, error) {
	return p.blockingRetry(fd, transport.EventWritable, func() (int, status.Status) {
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, status.ErrBadHandle
		}
		defer e.Release()
		return e.Transport.Write(buf)
	})
}

// PRead implements pread(2).
func (p *Process) PRead(fd int, buf []byte, offset int64) (int, error) {
	return p.blockingRetry(fd, transport.EventReadable, func() (int, status.Status) {
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, status.ErrBadHandle
		}
		defer e.Release()
		return e.Transport.ReadAt(buf, offset)
	})
}

// PWrite implements pwrite(2).
func (p *Process) PWrite(fd int, buf []byte, offset int64) (int, error) {
	return p.blockingRetry(fd, transport.EventWritable, func() (int, status.Status) {
		e := p.Table.Lookup(fd)
		if e == nil {
			return -1, status.ErrBadHandle
		}
		defer e.Release()
		return e.Transport.WriteAt(buf, offset)
	})
}

// ReadV implements readv(2): successive Read calls over a vector of
// buffers, stopping at the first short read or error (spec.md §2
// component 6 "vector forms"; unistd.c's readv loops over read()).
func (p *Process) ReadV(fd int, iov [][]byte) (int, error) {
	count := 0
	for _, buf := range iov {
		if len(buf) == 0 {
			continue
		}
		n, err := p.Read(fd, buf)
		if err != nil {
			if count > 0 {
				return count, nil
			}
			return -1, err
		}
		count += n
		if n < len(buf) {
			return count, nil
		}
	}
	return count, nil
}

// WriteV implements writev(2).
func (p *Process) WriteV(fd int, iov [][]byte) (int, error) {
	count := 0
	for _, buf := range iov {
		if len(buf) == 0 {
			continue
		}
		n, err := p.Write(fd, buf)
		if err != nil {
			if count > 0 {
				return count, nil
			}
			return -1, err
		}
		count += n
		if n < len(buf) {
			return count, nil
		}
	}
	return count, nil
}

// PReadV implements preadv(2): like ReadV, but each successive call
// advances the explicit offset rather than relying on a stream cursor.
func (p *Process) PReadV(fd int, iov [][]byte, offset int64) (int, error) {
	count := 0
	for _, buf := range iov {
		if len(buf) == 0 {
			continue
		}
		n, err := p.PRead(fd, buf, offset)
		if err != nil {
			if count > 0 {
				return count, nil
			}
			return -1, err
		}
		count += n
		offset += int64(n)
		if n < len(buf) {
			return count, nil
		}
	}
	return count, nil
}

// PWriteV implements pwritev(2).
func (p *Process) PWriteV(fd int, iov [][]byte, offset int64) (int, error) {
	count := 0
	for _, buf := range iov {
		if len(buf) == 0 {
			continue
		}
		n, err := p.PWrite(fd, buf, offset)
		if err != nil {
			if count > 0 {
				return count, nil
			}
			return -1, err
		}
		count += n
		offset += int64(n)
		if n < len(buf) {
			return count, nil
		}
	}
	return count, nil
}

// Seek implements lseek(2).
func (p *Process) Seek(fd int, offset int64, whence transport.Whence) (int64, error) {
	e := p.Table.Lookup(fd)
	if e == nil {
		return -1, errnoErr(unix.EBADF)
	}
	defer e.Release()

	newOff, serr := e.Transport.Seek(offset, whence)
	if serr != nil {
		return -1, errnoErr(status.ToErrno(serr))
	}
	return newOff, nil
}
