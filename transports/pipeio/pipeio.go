// Package pipeio implements an in-memory, unidirectional byte-queue pipe,
// the Transport a pipe(2)/pipe2(2) call binds to the two fds it returns
// (spec.md §4 "pipe", §2 component 10 "Transport implementations").
//
// The buffered byte queue and its capacity limiting are grounded on
// gvisor's pkg/sentry/kernel/pipe.Pipe, generalized here from a
// dirent-backed fs.Inode object down onto this module's standalone
// transport.Transport vtable: there is no filesystem beneath this pipe,
// only the two endpoints created by Pair.
package pipeio

import (
	"sync"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// DefaultSize is the default capacity of a pipe's byte buffer, matching
// pipe.DefaultPipeSize.
const DefaultSize = 65536

// buffer is the shared byte queue both pipe endpoints dispatch through,
// along with the reader/writer liveness counts that decide EOF vs
// ErrShouldWait (spec.md §4 "pipe" edge cases).
type buffer struct {
	mu   sync.Mutex
	data []byte
	max  int

	readers int
	writers int

	readHandle  *khandle.Handle
	writeHandle *khandle.Handle
}

func newBuffer(size int) *buffer {
	if size <= 0 {
		size = DefaultSize
	}
	b := &buffer{
		max:         size,
		readers:     1,
		writers:     1,
		readHandle:  khandle.NewHandle(),
		writeHandle: khandle.NewHandle(),
	}
	b.signalLocked()
	return b
}

func (b *buffer) signalLocked() {
	if len(b.data) > 0 || b.writers == 0 {
		b.readHandle.SetSignals(khandle.SignalReadable)
	} else {
		b.readHandle.ClearSignals(khandle.SignalReadable)
	}
	if len(b.data) < b.max || b.readers == 0 {
		b.writeHandle.SetSignals(khandle.SignalWritable)
	} else {
		b.writeHandle.ClearSignals(khandle.SignalWritable)
	}
	if b.readers == 0 {
		b.writeHandle.SetSignals(khandle.SignalHangup)
	}
	if b.writers == 0 {
		b.readHandle.SetSignals(khandle.SignalHangup)
	}
}

// End is one endpoint (read or write) of a pipe pair.
type End struct {
	buf      *buffer
	isWriter bool
	closed   bool // guarded by buf.mu
}

// Pair constructs a connected read end and write end sharing one byte
// buffer of the given capacity (0 selects DefaultSize), the Transport
// pair behind pipe(2)/pipe2(2).
func Pair(size int) (read *End, write *End) {
	b := newBuffer(size)
	return &End{buf: b, isWriter: false}, &End{buf: b, isWriter: true}
}

func (e *End) Read(p []byte) (int, status.Status) {
	if e.isWriter {
		return -1, status.ErrNotSupported
	}
	b := e.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		if b.writers == 0 {
			return 0, nil
		}
		return -1, status.ErrShouldWait
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	b.signalLocked()
	return n, nil
}

func (e *End) Write(p []byte) (int, status.Status) {
	if !e.isWriter {
		return -1, status.ErrNotSupported
	}
	b := e.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.readers == 0 {
		return -1, status.ErrRemoteClosed
	}
	room := b.max - len(b.data)
	if room <= 0 {
		return -1, status.ErrShouldWait
	}
	n := len(p)
	if n > room {
		n = room
	}
	b.data = append(b.data, p[:n]...)
	b.signalLocked()
	return n, nil
}

func (e *End) ReadAt(p []byte, off int64) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (e *End) WriteAt(p []byte, off int64) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (e *End) Seek(off int64, whence transport.Whence) (int64, status.Status) {
	return -1, status.ErrNotSupported
}

func (e *End) Open(path string, flags transport.OpenFlags, mode uint32) (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

// Clone hands out another End sharing this one's buffer, incrementing the
// matching reader/writer count (spec.md §4.2 "clone"): the pipe only goes
// to hangup once every cloned End on that side has closed.
func (e *End) Clone() (transport.Transport, status.Status) {
	b := e.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.isWriter {
		b.writers++
	} else {
		b.readers++
	}
	return &End{buf: b, isWriter: e.isWriter}, nil
}

// Unwrap has no distinct meaning for a pipe end beyond Clone: there is no
// separate handle representation to hand back ownership of.
func (e *End) Unwrap() (transport.Transport, status.Status) {
	return e.Clone()
}

// GetVmo: a pipe's buffer is never backed by a mappable handle.
func (e *End) GetVmo() (*khandle.Handle, int64, int64, status.Status) {
	return nil, 0, 0, status.ErrNotSupported
}

func (e *End) Misc(op transport.MiscOp, arg int64, in []byte, maxReply int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (e *End) Ioctl(op int, in []byte, outLen int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (e *End) PosixIoctl(req int, arg uintptr) status.Status {
	return status.ErrNotSupported
}

// WaitBegin maps POSIX events onto this endpoint's handle and kernel
// signal mask: a read end only ever signals readable/hangup, a write end
// only writable/hangup.
func (e *End) WaitBegin(events transport.Events) (*khandle.Handle, khandle.Signals) {
	var waitfor khandle.Signals
	var h *khandle.Handle
	if e.isWriter {
		h = e.buf.writeHandle
		if events&transport.EventWritable != 0 {
			waitfor |= khandle.SignalWritable
		}
	} else {
		h = e.buf.readHandle
		if events&transport.EventReadable != 0 {
			waitfor |= khandle.SignalReadable
		}
	}
	if events&transport.EventHangup != 0 {
		waitfor |= khandle.SignalHangup
	}
	return h, waitfor
}

// WaitEnd is the reverse of WaitBegin.
func (e *End) WaitEnd(pending khandle.Signals) transport.Events {
	var events transport.Events
	if pending&khandle.SignalReadable != 0 {
		events |= transport.EventReadable
	}
	if pending&khandle.SignalWritable != 0 {
		events |= transport.EventWritable
	}
	if pending&khandle.SignalHangup != 0 {
		events |= transport.EventHangup
	}
	return events
}

// Close releases this endpoint's share of the pipe, marking the buffer
// hung up for the other side once the count of open Ends on this side
// reaches zero (spec.md §4 "pipe": idempotent close).
func (e *End) Close() status.Status {
	b := e.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.isWriter {
		if b.writers == 0 {
			return nil
		}
		b.writers--
	} else {
		if b.readers == 0 {
			return nil
		}
		b.readers--
	}
	b.signalLocked()
	return nil
}

var _ transport.Transport = (*End)(nil)
