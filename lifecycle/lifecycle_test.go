package lifecycle

import (
	"testing"

	"github.com/donball360/magenta/transports/nullio"
	"github.com/donball360/magenta/transports/pipeio"
)

func TestInitWithNoHandlesFillsStdioWithDefaults(t *testing.T) {
	p := Init(nil, "/", nil)
	defer Shutdown(p)

	for fd := 0; fd < 3; fd++ {
		if e := p.Table.Lookup(fd); e == nil {
			t.Fatalf("fd %d not bound", fd)
		} else {
			e.Release()
		}
	}
	if got, err := p.GetCWD(); err != nil || got != "/" {
		t.Fatalf("GetCWD() = %q, %v, want /", got, err)
	}
}

func TestInitBindsPipeHandleToRequestedFD(t *testing.T) {
	_, write := pipeio.Pair(pipeio.DefaultSize)
	p := Init([]StartupHandle{
		{Type: HandlePipe, Transport: write, FD: 5},
	}, "/", nil)
	defer Shutdown(p)

	if e := p.Table.Lookup(5); e == nil {
		t.Fatalf("fd 5 not bound to the pipe handle")
	} else {
		e.Release()
	}
}

func TestInitUseForStdioRedirectsStdout(t *testing.T) {
	read, write := pipeio.Pair(pipeio.DefaultSize)
	_ = read
	p := Init([]StartupHandle{
		{Type: HandlePipe, Transport: write, FD: 1 | FlagUseForStdio},
	}, "/", nil)
	defer Shutdown(p)

	n, err := p.Write(1, []byte("hi"))
	if err != nil {
		t.Fatalf("Write(1): %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

// TestInitUseForStdioSharesOneEntryAcrossAllAliases exercises spec.md §8
// S1: a USE_FOR_STDIO handle bound outside 0/1/2 ends up aliased by fds
// 0, 1, 2, and its own fd, all sharing one Entry with dupcount 4 — so
// closing any one of them still leaves the transport open for the rest.
func TestInitUseForStdioSharesOneEntryAcrossAllAliases(t *testing.T) {
	_, write := pipeio.Pair(pipeio.DefaultSize)
	p := Init([]StartupHandle{
		{Type: HandlePipe, Transport: write, FD: 5 | FlagUseForStdio},
	}, "/", nil)
	defer Shutdown(p)

	e5 := p.Table.Lookup(5)
	e1 := p.Table.Lookup(1)
	if e5 != e1 {
		t.Fatalf("fd 5 and fd 1 point at different Entry objects, want the same shared Entry")
	}
	e5.Release()
	e1.Release()

	if err := p.Close(0); err != nil {
		t.Fatalf("Close(0): %v", err)
	}

	n, err := p.Write(1, []byte("hi"))
	if err != nil {
		t.Fatalf("Write(1) after closing fd 0: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestInitUsesSuppliedRootForCWDWhenNoneGiven(t *testing.T) {
	root := nullio.New()
	p := Init([]StartupHandle{
		{Type: HandleRoot, Transport: root},
	}, "/", nil)
	defer Shutdown(p)

	if p.Root.Transport != root {
		t.Fatalf("Root.Transport = %v, want the supplied root", p.Root.Transport)
	}
	if p.CWD.Entry().Transport != root {
		t.Fatalf("CWD falls back to a different transport than root")
	}
	p.CWD.Entry().Release()
}

func TestShutdownDrainsAllBoundFDs(t *testing.T) {
	p := Init(nil, "/", nil)
	Shutdown(p)
	if p.Table.Size() != 0 {
		t.Fatalf("Table.Size() = %d after Shutdown, want 0", p.Table.Size())
	}
}
