package posix

import (
	"testing"

	"github.com/donball360/magenta/cwd"
	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// dirTransport is a minimal directory-like Transport: Open against it
// always succeeds and yields another dirTransport, enough to exercise
// chdir/openat's resolution path without a real filesystem behind it.
type dirTransport struct{}

func (dirTransport) Read(buf []byte) (int, status.Status)  { return 0, nil }
func (dirTransport) Write(buf []byte) (int, status.Status) { return len(buf), nil }
func (dirTransport) ReadAt(buf []byte, off int64) (int, status.Status)  { return 0, nil }
func (dirTransport) WriteAt(buf []byte, off int64) (int, status.Status) { return len(buf), nil }
func (dirTransport) Seek(off int64, whence transport.Whence) (int64, status.Status) {
	return 0, nil
}
func (dirTransport) Open(path string, flags transport.OpenFlags, mode uint32) (transport.Transport, status.Status) {
	return dirTransport{}, nil
}
func (dirTransport) Clone() (transport.Transport, status.Status) {
	return dirTransport{}, nil
}
func (dirTransport) Unwrap() (transport.Transport, status.Status) {
	return dirTransport{}, nil
}
func (dirTransport) GetVmo() (*khandle.Handle, int64, int64, status.Status) {
	return nil, 0, 0, status.ErrNotSupported
}
func (dirTransport) Misc(op transport.MiscOp, arg int64, in []byte, maxReply int) ([]byte, status.Status) {
	if op == transport.MiscStat {
		return transport.EncodeAttr(transport.Attr{Mode: 0o040755}), nil
	}
	return nil, status.ErrNotSupported
}
func (dirTransport) Ioctl(op int, in []byte, outLen int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}
func (dirTransport) PosixIoctl(req int, arg uintptr) status.Status { return status.ErrNotSupported }
func (dirTransport) WaitBegin(events transport.Events) (*khandle.Handle, khandle.Signals) {
	return nil, 0
}
func (dirTransport) WaitEnd(pending khandle.Signals) transport.Events { return 0 }
func (dirTransport) Close() status.Status                            { return nil }

var _ transport.Transport = dirTransport{}

func newTestProcess() *Process {
	table := fdtable.New()
	root := fdtable.NewEntry(dirTransport{}, 0)
	root.IncRef()
	cwdState := cwd.New("/", root)
	return New(table, cwdState, root, nil)
}

func TestPipeReadWriteRoundTrip(t *testing.T) {
	p := newTestProcess()
	rfd, wfd, err := p.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer p.Close(rfd)
	defer p.Close(wfd)

	if _, err := p.Write(wfd, []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 32)
	n, err := p.Read(rfd, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "payload" {
		t.Fatalf("Read = %q, want payload", buf[:n])
	}
}

func TestDup2SameFDIsNoOp(t *testing.T) {
	p := newTestProcess()
	rfd, wfd, _ := p.Pipe()
	defer p.Close(rfd)
	defer p.Close(wfd)

	got, err := p.Dup2(rfd, rfd)
	if err != nil {
		t.Fatalf("Dup2: %v", err)
	}
	if got != rfd {
		t.Fatalf("Dup2(fd,fd) = %d, want %d", got, rfd)
	}
}

func TestDup3SameFDIsEinval(t *testing.T) {
	p := newTestProcess()
	rfd, wfd, _ := p.Pipe()
	defer p.Close(rfd)
	defer p.Close(wfd)

	if _, err := p.Dup3(rfd, rfd, 0); err == nil {
		t.Fatalf("Dup3(fd,fd,0): expected error, got nil")
	}
}

func TestCloseUnknownFDIsEBADF(t *testing.T) {
	p := newTestProcess()
	if err := p.Close(999); err == nil {
		t.Fatalf("Close(999): expected error, got nil")
	}
}

func TestChDirUpdatesCWDPath(t *testing.T) {
	p := newTestProcess()
	if err := p.ChDir("sub"); err != nil {
		t.Fatalf("ChDir: %v", err)
	}
	got, err := p.GetCWD()
	if err != nil {
		t.Fatalf("GetCWD: %v", err)
	}
	if got != "/sub" {
		t.Fatalf("GetCWD() = %q, want /sub", got)
	}
}

func TestFStatReturnsDecodedAttr(t *testing.T) {
	p := newTestProcess()
	fd, err := p.Open("file", transport.OpenReadOnly, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close(fd)

	attr, err := p.FStat(fd)
	if err != nil {
		t.Fatalf("FStat: %v", err)
	}
	if attr.Mode != 0o040755 {
		t.Fatalf("Mode = %o, want 040755", attr.Mode)
	}
}
