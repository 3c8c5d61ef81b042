package posix

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// Infinite is the "wait forever" timeout sentinel for WaitFD, mirroring
// MX_TIME_INFINITE.
const Infinite = -1 * time.Nanosecond

// WaitFD implements the single-fd blocking wait primitive (spec.md §4.4
// wait_fd): look up the transport, call WaitBegin to obtain a handle and
// signal mask, invoke the kernel wait-one primitive, then call WaitEnd to
// translate back to POSIX events. A nil handle from WaitBegin means the
// transport doesn't support waiting and yields EINVAL.
func (p *Process) WaitFD(fd int, events transport.Events, timeout time.Duration) (transport.Events, error) {
	e := p.Table.Lookup(fd)
	if e == nil {
		return 0, errnoErr(unix.EBADF)
	}
	defer e.Release()

	h, waitfor := e.Transport.WaitBegin(events)
	if h == nil {
		return 0, errnoErr(unix.EINVAL)
	}

	pending, serr := khandle.ObjectWaitOne(h, waitfor, timeout)
	if !status.IsShouldWaitOrTimedOut(serr) {
		return 0, errnoErr(status.ToErrno(serr))
	}

	got := e.Transport.WaitEnd(pending)
	return got, nil
}

// blockingRetry implements the {try -> ShouldWait -> wait -> try} state
// machine spec.md §9 calls out as simpler to audit than nested calls: it
// calls try(); if that returns status.ErrShouldWait and the fd is not
// O_NONBLOCK, it blocks on WaitFD for waitEvents and retries; if
// O_NONBLOCK is set it surfaces EAGAIN immediately (spec.md §4.4).
func (p *Process) blockingRetry(fd int, waitEvents transport.Events, try func() (int, status.Status)) (int, error) {
	e := p.Table.Lookup(fd)
	if e == nil {
		return -1, errnoErr(unix.EBADF)
	}
	nonblock := e.Flags()&transport.FlagNonblock != 0
	e.Release()

	for {
		n, serr := try()
		if serr == nil {
			return n, nil
		}
		if !status.IsShouldWait(serr) {
			return -1, errnoErr(status.ToErrno(serr))
		}
		if nonblock {
			return -1, errnoErr(unix.EAGAIN)
		}
		if _, err := p.WaitFD(fd, waitEvents, Infinite); err != nil {
			return -1, err
		}
	}
}
