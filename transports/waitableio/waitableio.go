// Package waitableio wraps a bare khandle.Handle as a Transport with no
// data path at all — only wait semantics — the analogue of
// mxio_handle_fd, which binds a raw kernel handle to an fd purely so
// poll/select/wait_fd can observe its signals without any associated
// read/write object (spec.md §2 component 10 "Transport
// implementations").
package waitableio

import (
	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// Waitable is a Transport whose only real behavior is WaitBegin/WaitEnd;
// every data-path method fails with status.ErrNotSupported.
type Waitable struct {
	handle     *khandle.Handle
	readSignal khandle.Signals
	writeSignal khandle.Signals
}

// Wrap builds a Waitable around an existing handle, mapping
// EventReadable/EventWritable onto the given signal bits the way the
// caller's protocol defines them (mxio_handle_fd takes a similar pair of
// signal arguments for its readable/writable mapping).
func Wrap(h *khandle.Handle, readSignal, writeSignal khandle.Signals) *Waitable {
	return &Waitable{handle: h, readSignal: readSignal, writeSignal: writeSignal}
}

func (w *Waitable) Read(buf []byte) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (w *Waitable) Write(buf []byte) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (w *Waitable) ReadAt(buf []byte, off int64) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (w *Waitable) WriteAt(buf []byte, off int64) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (w *Waitable) Seek(off int64, whence transport.Whence) (int64, status.Status) {
	return -1, status.ErrNotSupported
}

func (w *Waitable) Open(path string, flags transport.OpenFlags, mode uint32) (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

func (w *Waitable) Clone() (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

func (w *Waitable) Unwrap() (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

func (w *Waitable) GetVmo() (*khandle.Handle, int64, int64, status.Status) {
	return nil, 0, 0, status.ErrNotSupported
}

func (w *Waitable) Misc(op transport.MiscOp, arg int64, in []byte, maxReply int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (w *Waitable) Ioctl(op int, in []byte, outLen int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (w *Waitable) PosixIoctl(req int, arg uintptr) status.Status {
	return status.ErrNotSupported
}

func (w *Waitable) WaitBegin(events transport.Events) (*khandle.Handle, khandle.Signals) {
	var waitfor khandle.Signals
	if events&transport.EventReadable != 0 {
		waitfor |= w.readSignal
	}
	if events&transport.EventWritable != 0 {
		waitfor |= w.writeSignal
	}
	return w.handle, waitfor
}

func (w *Waitable) WaitEnd(pending khandle.Signals) transport.Events {
	var events transport.Events
	if pending&w.readSignal != 0 {
		events |= transport.EventReadable
	}
	if pending&w.writeSignal != 0 {
		events |= transport.EventWritable
	}
	return events
}

func (w *Waitable) Close() status.Status {
	khandle.HandleClose(w.handle)
	return nil
}

var _ transport.Transport = (*Waitable)(nil)
