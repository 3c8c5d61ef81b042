// Package waitmux implements the multi-fd blocking primitives built on
// top of posix.Process's single-fd wait: poll(2) and select(2) (spec.md
// §2 component 7 "Multiplexed waiters", §4.5). Both funnel through the
// same per-fd WaitBegin -> wait-many -> per-fd WaitEnd pipeline gvisor's
// sys_poll.go documents for PollVFS2: one reference taken per valid fd,
// one khandle.WaitItem assembled per fd, a single blocking call, then one
// event mask recovered per fd before every reference is released.
package waitmux

import (
	"time"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/posix"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// PollFD mirrors struct pollfd: the fd to watch, the events requested,
// and (filled in by Poll) the events observed.
type PollFD struct {
	FD      int
	Events  transport.Events
	Revents transport.Events
}

// Poll implements poll(2): waits on Fds until at least one is ready, the
// timeout elapses, or the deadline is exceeded. A negative timeout means
// wait forever, matching poll's own -1 convention. It returns the number
// of fds with a non-zero Revents.
func Poll(p *posix.Process, fds []PollFD, timeout time.Duration) (int, error) {
	if len(fds) == 0 {
		if timeout < 0 {
			select {}
		}
		time.Sleep(timeout)
		return 0, nil
	}

	items := make([]khandle.WaitItem, 0, len(fds))
	waiters := make([]int, 0, len(fds)) // items[i] -> fds[waiters[i]]
	released := make([]func(), 0, len(fds))

	for i := range fds {
		if fds[i].FD < 0 {
			continue
		}
		e := p.Table.Lookup(fds[i].FD)
		if e == nil {
			fds[i].Revents = transport.EventInvalid
			continue
		}
		entry := e
		h, waitfor := entry.Transport.WaitBegin(fds[i].Events | transport.EventHangup | transport.EventError)
		if h == nil {
			entry.Release()
			fds[i].Revents = transport.EventInvalid
			continue
		}
		items = append(items, khandle.WaitItem{Handle: h, WaitFor: waitfor})
		waiters = append(waiters, i)
		released = append(released, func() { entry.Release() })
	}
	defer func() {
		for _, r := range released {
			r()
		}
	}()

	ready := 0
	for i := range fds {
		if fds[i].Revents != 0 {
			ready++
		}
	}
	if ready > 0 || len(items) == 0 {
		return ready, nil
	}

	serr := khandle.ObjectWaitMany(items, timeout)
	if serr != nil && !status.IsShouldWaitOrTimedOut(serr) {
		return -1, statusErr(serr)
	}

	for i, item := range items {
		idx := waiters[i]
		e := p.Table.Lookup(fds[idx].FD)
		if e == nil {
			continue
		}
		fds[idx].Revents = e.Transport.WaitEnd(item.Pending) & (fds[idx].Events | transport.EventHangup | transport.EventError)
		e.Release()
		if fds[idx].Revents != 0 {
			ready++
		}
	}
	return ready, nil
}

// FDSet is a sparse set of file descriptors, the Go analogue of fd_set.
type FDSet map[int]struct{}

// NewFDSet builds an FDSet from the given fds.
func NewFDSet(fds ...int) FDSet {
	s := make(FDSet, len(fds))
	for _, fd := range fds {
		s[fd] = struct{}{}
	}
	return s
}

// Select implements select(2) in terms of Poll: each of readfds/writefds/
// exceptfds is translated into the corresponding poll event and merged
// per fd, then Poll does the actual waiting. The three sets are updated
// in place to contain only the ready fds, matching select's mutate-in-
// place contract.
func Select(p *posix.Process, readfds, writefds, exceptfds FDSet, timeout time.Duration) (int, error) {
	all := make(map[int]transport.Events)
	for fd := range readfds {
		all[fd] |= transport.EventReadable
	}
	for fd := range writefds {
		all[fd] |= transport.EventWritable
	}
	for fd := range exceptfds {
		all[fd] |= transport.EventError
	}

	fds := make([]PollFD, 0, len(all))
	for fd, events := range all {
		fds = append(fds, PollFD{FD: fd, Events: events})
	}

	if _, err := Poll(p, fds, timeout); err != nil {
		return -1, err
	}

	outR, outW, outE := FDSet{}, FDSet{}, FDSet{}
	ready := 0
	for _, pf := range fds {
		if pf.Revents&transport.EventReadable != 0 {
			if _, want := readfds[pf.FD]; want {
				outR[pf.FD] = struct{}{}
				ready++
			}
		}
		if pf.Revents&transport.EventWritable != 0 {
			if _, want := writefds[pf.FD]; want {
				outW[pf.FD] = struct{}{}
				ready++
			}
		}
		if pf.Revents&(transport.EventError|transport.EventInvalid) != 0 {
			if _, want := exceptfds[pf.FD]; want {
				outE[pf.FD] = struct{}{}
				ready++
			}
		}
	}
	for fd := range readfds {
		delete(readfds, fd)
	}
	for fd := range outR {
		readfds[fd] = struct{}{}
	}
	for fd := range writefds {
		delete(writefds, fd)
	}
	for fd := range outW {
		writefds[fd] = struct{}{}
	}
	for fd := range exceptfds {
		delete(exceptfds, fd)
	}
	for fd := range outE {
		exceptfds[fd] = struct{}{}
	}
	return ready, nil
}

func statusErr(s status.Status) error {
	return status.FromStatus(s, -1).Errno
}
