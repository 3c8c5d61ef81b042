package waitmux

import (
	"testing"
	"time"

	"github.com/donball360/magenta/cwd"
	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/posix"
	"github.com/donball360/magenta/transport"
	"github.com/donball360/magenta/transports/nullio"
	"github.com/donball360/magenta/transports/pipeio"
)

func newTestProcess() (*posix.Process, *fdtable.Table) {
	table := fdtable.New()
	root := fdtable.NewEntry(nullio.New(), 0)
	root.IncRef()
	return posix.New(table, cwd.New("/", root), root, nil), table
}

func bindPipe(table *fdtable.Table, size int) (readFD, writeFD int) {
	read, write := pipeio.Pair(size)
	rEntry := fdtable.NewEntry(read, 0)
	wEntry := fdtable.NewEntry(write, 0)
	rfd, dc1, err := table.Bind(rEntry, -1, 0)
	if err != nil {
		panic(err)
	}
	if dc1 != nil {
		dc1.Run()
	}
	wfd, dc2, err := table.Bind(wEntry, -1, 0)
	if err != nil {
		panic(err)
	}
	if dc2 != nil {
		dc2.Run()
	}
	return rfd, wfd
}

func TestPollReportsWritableImmediately(t *testing.T) {
	p, table := newTestProcess()
	_, wfd := bindPipe(table, pipeio.DefaultSize)

	fds := []PollFD{{FD: wfd, Events: transport.EventWritable}}
	n, err := Poll(p, fds, time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	if fds[0].Revents&transport.EventWritable == 0 {
		t.Fatalf("Revents = %v, want EventWritable set", fds[0].Revents)
	}
}

func TestPollTimesOutWhenNothingReady(t *testing.T) {
	p, table := newTestProcess()
	rfd, _ := bindPipe(table, pipeio.DefaultSize)

	fds := []PollFD{{FD: rfd, Events: transport.EventReadable}}
	n, err := Poll(p, fds, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestPollBadFDIsInvalid(t *testing.T) {
	p, _ := newTestProcess()
	fds := []PollFD{{FD: 999, Events: transport.EventReadable}}
	n, err := Poll(p, fds, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 1 || fds[0].Revents != transport.EventInvalid {
		t.Fatalf("fds[0] = %+v, want EventInvalid", fds[0])
	}
}

// TestPollNegativeFDIsIgnored exercises spec.md §8 invariant 7: a poll
// call with only fd = -1 entries returns 0 immediately and leaves every
// Revents at 0 (original_source/unistd.c:1462-1468 just `continue`s on
// fd < 0, never touching revents).
func TestPollNegativeFDIsIgnored(t *testing.T) {
	p, _ := newTestProcess()
	fds := []PollFD{{FD: -1, Events: transport.EventReadable}, {FD: -1, Events: transport.EventWritable}}
	n, err := Poll(p, fds, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
	for i, pf := range fds {
		if pf.Revents != 0 {
			t.Fatalf("fds[%d].Revents = %v, want 0", i, pf.Revents)
		}
	}
}

func TestPollWakesWhenPeerWrites(t *testing.T) {
	p, table := newTestProcess()
	rfd, wfd := bindPipe(table, pipeio.DefaultSize)

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.Write(wfd, []byte("x"))
	}()

	fds := []PollFD{{FD: rfd, Events: transport.EventReadable}}
	n, err := Poll(p, fds, time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	if fds[0].Revents&transport.EventReadable == 0 {
		t.Fatalf("Revents = %v, want EventReadable", fds[0].Revents)
	}
}

func TestSelectSplitsReadyFDsIntoCorrectSets(t *testing.T) {
	p, table := newTestProcess()
	_, wfd := bindPipe(table, pipeio.DefaultSize)

	readfds := NewFDSet()
	writefds := NewFDSet(wfd)
	exceptfds := NewFDSet()

	n, err := Select(p, readfds, writefds, exceptfds, time.Second)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	if _, ok := writefds[wfd]; !ok {
		t.Fatalf("writefds = %v, want %d present", writefds, wfd)
	}
	if len(readfds) != 0 {
		t.Fatalf("readfds = %v, want empty", readfds)
	}
}
