// Package khandle simulates the small slice of kernel-object syscalls the
// fdio core consumes but does not implement itself: object_wait_one,
// object_wait_many, handle_close, and time_get (see spec.md §1, "deliberately
// out of scope", and §6 "downward interface"). There is no real microkernel
// underneath this module, so this package stands in for it: a Handle is a
// bundle of pending signal bits plus a registry of blocked waiters, modeled
// on the wait-queue/entry/callback pattern in gvisor's pkg/waiter, but
// generalized here from a single in-process wait queue into the small
// handle table the spec describes (with a real wait-many primitive instead
// of only per-object notification).
package khandle

import (
	"sync"
	"time"

	"github.com/donball360/magenta/status"
)

// Signals is a bitmask of kernel-level readiness conditions, the handle
// analogue of POSIX poll events. Transports translate between this space
// and transport.Events in their WaitBegin/WaitEnd implementations.
type Signals uint32

const (
	SignalReadable Signals = 1 << iota
	SignalWritable
	SignalError
	SignalHangup
	SignalClosed
)

// Handle is an opaque kernel-object identifier. The zero value is not
// usable; construct with NewHandle.
type Handle struct {
	mu      sync.Mutex
	pending Signals
	closed  bool
	waiters map[*waiter]struct{}
}

type waiter struct {
	waitfor Signals
	ch      chan struct{}
}

// NewHandle allocates a handle with no pending signals.
func NewHandle() *Handle {
	return &Handle{waiters: make(map[*waiter]struct{})}
}

// SetSignals ORs mask into the handle's pending signals and wakes any
// blocked waiter whose awaited mask intersects it, mirroring
// waiter.Queue.Notify's walk-and-callback-on-intersection behavior.
func (h *Handle) SetSignals(mask Signals) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.pending |= mask
	h.wakeLocked(mask)
}

// ClearSignals ANDs the complement of mask into the pending signals. It
// does not wake anyone: clearing readiness is never itself an event.
func (h *Handle) ClearSignals(mask Signals) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending &^= mask
}

func (h *Handle) wakeLocked(mask Signals) {
	for w := range h.waiters {
		if w.waitfor&mask != 0 {
			select {
			case w.ch <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Handle) register(waitfor Signals) *waiter {
	w := &waiter{waitfor: waitfor, ch: make(chan struct{}, 1)}
	h.waiters[w] = struct{}{}
	return w
}

func (h *Handle) unregister(w *waiter) {
	delete(h.waiters, w)
}

// HandleClose marks the handle closed and wakes every blocked waiter so
// none of them hang forever on a handle that will never signal again.
func HandleClose(h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.pending |= SignalClosed
	h.wakeLocked(SignalClosed)
	for w := range h.waiters {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	}
}

// ObjectWaitOne blocks until waitfor intersects the handle's pending
// signals, the handle closes, or timeout elapses. A timeout <0 means wait
// forever. On timeout it returns status.ErrTimedOut along with whatever
// signals happen to be pending at that instant, matching spec.md §4.5's
// "both success and TIMED_OUT are processed as pending signals may still
// be meaningful".
func ObjectWaitOne(h *Handle, waitfor Signals, timeout time.Duration) (Signals, status.Status) {
	h.mu.Lock()
	if pending := h.pending & waitfor; pending != 0 || h.closed {
		p := h.pending
		h.mu.Unlock()
		return p, nil
	}
	w := h.register(waitfor)
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.unregister(w)
		h.mu.Unlock()
	}()

	var timer *time.Timer
	var timerC <-chan time.Time
	if timeout >= 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		select {
		case <-w.ch:
			h.mu.Lock()
			pending := h.pending & waitfor
			closed := h.closed
			p := h.pending
			h.mu.Unlock()
			if pending != 0 || closed {
				return p, nil
			}
		case <-timerC:
			h.mu.Lock()
			p := h.pending
			h.mu.Unlock()
			return p, status.ErrTimedOut
		}
	}
}

// WaitItem is one entry of a multi-handle wait, the Go analogue of
// mx_wait_item_t: a handle, the signals being waited for, and (filled in
// on return) the signals observed pending.
type WaitItem struct {
	Handle  *Handle
	WaitFor Signals
	Pending Signals
}

// ObjectWaitMany blocks until at least one item's WaitFor intersects its
// handle's pending signals (or that handle is closed), or until timeout
// elapses; it fills in Pending for every item before returning. A
// timeout <0 waits forever.
func ObjectWaitMany(items []WaitItem, timeout time.Duration) status.Status {
	if len(items) == 0 {
		return status.ErrInvalidArgs
	}

	// A single shared, generously buffered channel fed by a waiter
	// registered on every handle: any one of them firing is enough to
	// re-check the full item set, so the channel only needs to be woken,
	// never to carry which handle fired.
	notify := make(chan struct{}, len(items))
	registered := make([]*waiter, len(items))
	for i := range items {
		h := items[i].Handle
		h.mu.Lock()
		w := &waiter{waitfor: items[i].WaitFor, ch: notify}
		h.waiters[w] = struct{}{}
		registered[i] = w
		h.mu.Unlock()
	}
	defer func() {
		for i := range items {
			h := items[i].Handle
			h.mu.Lock()
			delete(h.waiters, registered[i])
			h.mu.Unlock()
		}
	}()

	check := func() bool {
		any := false
		for i := range items {
			h := items[i].Handle
			h.mu.Lock()
			items[i].Pending = h.pending
			if items[i].WaitFor&h.pending != 0 || h.closed {
				any = true
			}
			h.mu.Unlock()
		}
		return any
	}

	if check() {
		return nil
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	if timeout >= 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	for {
		select {
		case <-notify:
			if check() {
				return nil
			}
		case <-timerC:
			check()
			return status.ErrTimedOut
		}
	}
}

// TimeGet returns the current wall-clock time, standing in for the
// kernel's time_get(MX_CLOCK_UTC) used by utimens.
func TimeGet() time.Time {
	return time.Now()
}
