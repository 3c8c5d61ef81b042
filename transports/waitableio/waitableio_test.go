package waitableio

import (
	"testing"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

func TestDataPathAlwaysUnsupported(t *testing.T) {
	h := khandle.NewHandle()
	w := Wrap(h, khandle.SignalReadable, khandle.SignalWritable)

	if _, err := w.Read(make([]byte, 1)); err != status.ErrNotSupported {
		t.Fatalf("Read err = %v, want ErrNotSupported", err)
	}
	if _, err := w.Write([]byte("x")); err != status.ErrNotSupported {
		t.Fatalf("Write err = %v, want ErrNotSupported", err)
	}
	if _, err := w.Seek(0, transport.SeekSet); err != status.ErrNotSupported {
		t.Fatalf("Seek err = %v, want ErrNotSupported", err)
	}
}

func TestWaitBeginEndRoundTripsCallerSignals(t *testing.T) {
	h := khandle.NewHandle()
	readSig := khandle.Signals(1 << 3)
	writeSig := khandle.Signals(1 << 4)
	w := Wrap(h, readSig, writeSig)

	got, waitfor := w.WaitBegin(transport.EventReadable | transport.EventWritable)
	if got != h {
		t.Fatalf("WaitBegin returned a different handle")
	}
	if waitfor != readSig|writeSig {
		t.Fatalf("waitfor = %v, want %v", waitfor, readSig|writeSig)
	}

	events := w.WaitEnd(readSig)
	if events != transport.EventReadable {
		t.Fatalf("WaitEnd(readSig) = %v, want EventReadable", events)
	}
}

func TestCloseClosesUnderlyingHandle(t *testing.T) {
	h := khandle.NewHandle()
	w := Wrap(h, khandle.SignalReadable, khandle.SignalWritable)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pending, _ := khandle.ObjectWaitOne(h, khandle.SignalClosed, 0); pending&khandle.SignalClosed == 0 {
		t.Fatalf("pending = %v after Close, want SignalClosed set on the wrapped handle", pending)
	}
}
