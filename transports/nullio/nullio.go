// Package nullio implements the always-ready, data-discarding Transport
// bound to a fd when startup has no real handle to give it — the
// analogue of opening /dev/null, and the fallback stdin/stdout/stderr
// when __libc_extensions_init finds no matching startup handle for a
// given fd (spec.md §2 component 10, §6 "startup handle consumption").
package nullio

import (
	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// Null is a Transport that reads as immediate EOF, accepts and discards
// any write, and is always ready for both reading and writing.
type Null struct {
	handle *khandle.Handle
}

// New builds a Null transport.
func New() *Null {
	h := khandle.NewHandle()
	h.SetSignals(khandle.SignalReadable | khandle.SignalWritable)
	return &Null{handle: h}
}

func (n *Null) Read(buf []byte) (int, status.Status) {
	return 0, nil
}

func (n *Null) Write(buf []byte) (int, status.Status) {
	return len(buf), nil
}

func (n *Null) ReadAt(buf []byte, off int64) (int, status.Status) {
	return 0, nil
}

func (n *Null) WriteAt(buf []byte, off int64) (int, status.Status) {
	return len(buf), nil
}

func (n *Null) Seek(off int64, whence transport.Whence) (int64, status.Status) {
	return 0, nil
}

func (n *Null) Open(path string, flags transport.OpenFlags, mode uint32) (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

// Clone hands out a fresh Null backed by its own always-ready handle: a
// null transport has nothing exclusive to share.
func (n *Null) Clone() (transport.Transport, status.Status) {
	return New(), nil
}

// Unwrap is equivalent to Clone for a null transport.
func (n *Null) Unwrap() (transport.Transport, status.Status) {
	return New(), nil
}

func (n *Null) GetVmo() (*khandle.Handle, int64, int64, status.Status) {
	return nil, 0, 0, status.ErrNotSupported
}

func (n *Null) Misc(op transport.MiscOp, arg int64, in []byte, maxReply int) ([]byte, status.Status) {
	if op == transport.MiscStat {
		return transport.EncodeAttr(transport.Attr{Mode: 0o020666}), nil
	}
	return nil, status.ErrNotSupported
}

func (n *Null) Ioctl(op int, in []byte, outLen int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (n *Null) PosixIoctl(req int, arg uintptr) status.Status {
	return status.ErrNotSupported
}

func (n *Null) WaitBegin(events transport.Events) (*khandle.Handle, khandle.Signals) {
	var waitfor khandle.Signals
	if events&transport.EventReadable != 0 {
		waitfor |= khandle.SignalReadable
	}
	if events&transport.EventWritable != 0 {
		waitfor |= khandle.SignalWritable
	}
	return n.handle, waitfor
}

func (n *Null) WaitEnd(pending khandle.Signals) transport.Events {
	var events transport.Events
	if pending&khandle.SignalReadable != 0 {
		events |= transport.EventReadable
	}
	if pending&khandle.SignalWritable != 0 {
		events |= transport.EventWritable
	}
	return events
}

func (n *Null) Close() status.Status {
	return nil
}

var _ transport.Transport = (*Null)(nil)
