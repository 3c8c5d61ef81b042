package posix

import (
	"testing"

	"github.com/donball360/magenta/cwd"
	"github.com/donball360/magenta/dirent"
	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/resolve"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// readdirTransport is a directory-like Transport whose Open yields itself
// and whose Misc serves a fixed entry list through MiscReaddir, enough to
// exercise Process's opendir/readdir/rewinddir/closedir/fdopendir/dirfd
// wiring without a real filesystem behind it.
type readdirTransport struct {
	entries []dirent.Entry
	pos     int
}

func (t *readdirTransport) Read(buf []byte) (int, status.Status)  { return 0, status.ErrNotSupported }
func (t *readdirTransport) Write(buf []byte) (int, status.Status) { return 0, status.ErrNotSupported }
func (t *readdirTransport) ReadAt(buf []byte, off int64) (int, status.Status) {
	return 0, status.ErrNotSupported
}
func (t *readdirTransport) WriteAt(buf []byte, off int64) (int, status.Status) {
	return 0, status.ErrNotSupported
}
func (t *readdirTransport) Seek(off int64, whence transport.Whence) (int64, status.Status) {
	return 0, status.ErrNotSupported
}
func (t *readdirTransport) Open(path string, flags transport.OpenFlags, mode uint32) (transport.Transport, status.Status) {
	return t, nil
}
func (t *readdirTransport) Clone() (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}
func (t *readdirTransport) Unwrap() (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}
func (t *readdirTransport) GetVmo() (*khandle.Handle, int64, int64, status.Status) {
	return nil, 0, 0, status.ErrNotSupported
}
func (t *readdirTransport) Misc(op transport.MiscOp, arg int64, in []byte, maxReply int) ([]byte, status.Status) {
	switch op {
	case transport.MiscStat:
		return transport.EncodeAttr(transport.Attr{Mode: 0o040755}), nil
	case transport.MiscReaddir:
		if transport.ReaddirCmd(arg) == transport.ReaddirReset {
			t.pos = 0
		}
		if t.pos >= len(t.entries) {
			return nil, nil
		}
		e := t.entries[t.pos]
		t.pos++
		return dirent.EncodeEntry(e), nil
	default:
		return nil, status.ErrNotSupported
	}
}
func (t *readdirTransport) Ioctl(op int, in []byte, outLen int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}
func (t *readdirTransport) PosixIoctl(req int, arg uintptr) status.Status {
	return status.ErrNotSupported
}
func (t *readdirTransport) WaitBegin(events transport.Events) (*khandle.Handle, khandle.Signals) {
	return nil, 0
}
func (t *readdirTransport) WaitEnd(pending khandle.Signals) transport.Events { return 0 }
func (t *readdirTransport) Close() status.Status                            { return nil }

var _ transport.Transport = (*readdirTransport)(nil)

func newReaddirTestProcess(entries []dirent.Entry) *Process {
	table := fdtable.New()
	root := fdtable.NewEntry(&readdirTransport{entries: entries}, 0)
	root.IncRef()
	cwdState := cwd.New("/", root)
	return New(table, cwdState, root, nil)
}

func TestOpenDirReadDirIteratesThenEOF(t *testing.T) {
	p := newReaddirTestProcess([]dirent.Entry{
		{Name: "a", Inode: 1, Type: dirent.TypeFile},
		{Name: "b", Inode: 2, Type: dirent.TypeDirectory},
	})
	s, err := p.OpenDir("subdir")
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	defer p.CloseDir(s)

	first, err := p.ReadDir(s)
	if err != nil || first == nil || first.Name != "a" {
		t.Fatalf("ReadDir[0] = %+v, %v, want a", first, err)
	}
	second, err := p.ReadDir(s)
	if err != nil || second == nil || second.Name != "b" {
		t.Fatalf("ReadDir[1] = %+v, %v, want b", second, err)
	}
	eof, err := p.ReadDir(s)
	if err != nil || eof != nil {
		t.Fatalf("ReadDir at EOF = %+v, %v, want nil, nil", eof, err)
	}
}

func TestRewindDirRestartsIteration(t *testing.T) {
	p := newReaddirTestProcess([]dirent.Entry{{Name: "only", Inode: 7, Type: dirent.TypeFile}})
	s, err := p.OpenDir("subdir")
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	defer p.CloseDir(s)

	if _, err := p.ReadDir(s); err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if e, err := p.ReadDir(s); err != nil || e != nil {
		t.Fatalf("ReadDir after exhausting = %+v, %v, want nil", e, err)
	}

	p.RewindDir(s)
	again, err := p.ReadDir(s)
	if err != nil || again == nil || again.Name != "only" {
		t.Fatalf("ReadDir after RewindDir = %+v, %v, want only", again, err)
	}
}

func TestDirFDMatchesOpenDirFD(t *testing.T) {
	p := newReaddirTestProcess(nil)
	s, err := p.OpenDir("subdir")
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	defer p.CloseDir(s)

	fd := p.DirFD(s)
	if e := p.Table.Lookup(fd); e == nil {
		t.Fatalf("DirFD() = %d, not bound in the table", fd)
	} else {
		e.Release()
	}
}

func TestFDOpenDirWrapsExistingFD(t *testing.T) {
	p := newReaddirTestProcess([]dirent.Entry{{Name: "only", Inode: 3, Type: dirent.TypeFile}})
	fd, err := p.OpenAt(resolve.AtFDCWD, "subdir", transport.OpenReadOnly|transport.OpenDirectory, 0)
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}

	s, err := p.FDOpenDir(fd)
	if err != nil {
		t.Fatalf("FDOpenDir: %v", err)
	}
	if s.DirFD() != fd {
		t.Fatalf("DirFD() = %d, want %d", s.DirFD(), fd)
	}
	entry, err := p.ReadDir(s)
	if err != nil || entry == nil || entry.Name != "only" {
		t.Fatalf("ReadDir = %+v, %v, want only", entry, err)
	}
	if err := p.CloseDir(s); err != nil {
		t.Fatalf("CloseDir: %v", err)
	}
	if e := p.Table.Lookup(fd); e != nil {
		e.Release()
		t.Fatalf("fd %d still bound after CloseDir", fd)
	}
}
