package posix

import (
	"github.com/donball360/magenta/dirent"
	"github.com/donball360/magenta/resolve"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// OpenDir implements opendir(3): open path as a directory and wrap the
// resulting fd in a dirent.Stream (unistd.c's opendir, via
// internal_opendir).
func (p *Process) OpenDir(path string) (*dirent.Stream, error) {
	return p.OpenDirAt(resolve.AtFDCWD, path)
}

// OpenDirAt resolves path relative to dirfd before wrapping the result,
// the same (dirfd, path) convention every other ...at call in this
// package follows (openAt, MkdirAt).
func (p *Process) OpenDirAt(dirfd int, path string) (*dirent.Stream, error) {
	fd, err := p.openAt(dirfd, path, transport.OpenReadOnly|transport.OpenDirectory, 0)
	if err != nil {
		return nil, err
	}
	s, serr := dirent.Open(p.Table, fd)
	if serr != nil {
		p.Close(fd)
		return nil, errnoErr(status.ToErrno(serr))
	}
	return s, nil
}

// FDOpenDir implements fdopendir(3): wrap an already-bound directory fd
// without opening a new one.
func (p *Process) FDOpenDir(fd int) (*dirent.Stream, error) {
	s, serr := dirent.Open(p.Table, fd)
	if serr != nil {
		return nil, errnoErr(status.ToErrno(serr))
	}
	return s, nil
}

// ReadDir implements readdir(3): the next entry, or (nil, nil) at EOF.
func (p *Process) ReadDir(s *dirent.Stream) (*dirent.Entry, error) {
	e, serr := s.Read()
	if serr != nil {
		return nil, errnoErr(status.ToErrno(serr))
	}
	return e, nil
}

// RewindDir implements rewinddir(3).
func (p *Process) RewindDir(s *dirent.Stream) {
	s.Rewind()
}

// CloseDir implements closedir(3): releases the Stream's reference on its
// fd and then closes that fd outright, matching unistd.c's closedir,
// which calls close(dirfd) itself rather than leaving it to the caller.
func (p *Process) CloseDir(s *dirent.Stream) error {
	fd := s.DirFD()
	if err := s.Close(); err != nil {
		return errnoErr(status.ToErrno(err))
	}
	return p.Close(fd)
}

// DirFD implements dirfd(3).
func (p *Process) DirFD(s *dirent.Stream) int {
	return s.DirFD()
}
