package fdtable

import (
	"sync/atomic"

	"github.com/donball360/magenta/transport"
)

// Entry pairs a transport with its reference/dup bookkeeping (spec.md §3
// "Transport" attributes refcount/dupcount/flags). It is the unit the fd
// table stores; callers never see a bare transport.Transport without one.
//
// Invariants (spec.md §8 properties 1-2):
//   - refcount >= dupcount >= 0 at all times for a live Entry
//   - dupcount equals the exact count of fdtab slots pointing at this Entry
//
// refcount is atomic so Release's fast path (the common "still referenced
// elsewhere" case) never takes the table lock; dupcount is mutated only
// under the table's mutex, mirroring the dupcount/refcount split called out
// in spec.md §9.
type Entry struct {
	Transport transport.Transport

	refcount int32 // atomic
	dupcount int32 // guarded by the owning Table's mutex

	flags transport.Flags
}

// NewEntry wraps a transport with an initial single reference and zero
// dup count; the caller is expected to immediately bind it into a Table,
// which will raise dupcount to 1.
func NewEntry(t transport.Transport, flags transport.Flags) *Entry {
	return &Entry{Transport: t, refcount: 1, flags: flags}
}

// IncRef acquires one more live reference to the entry.
func (e *Entry) IncRef() {
	atomic.AddInt32(&e.refcount, 1)
}

// Release drops one live reference. If it was the last one, the
// transport's Close is invoked by the caller (Release itself never calls
// Close, so callers can control whether that happens under a lock; see
// fdtable.Table's "close outside the lock" rule in spec.md §4.1).
func (e *Entry) Release() (last bool) {
	return atomic.AddInt32(&e.refcount, -1) == 0
}

// Refcount returns the current live reference count.
func (e *Entry) Refcount() int32 {
	return atomic.LoadInt32(&e.refcount)
}

// Flags returns the current descriptor flags.
func (e *Entry) Flags() transport.Flags {
	return e.flags
}

// SetFlags replaces the descriptor flags (F_SETFD/F_SETFL).
func (e *Entry) SetFlags(f transport.Flags) {
	e.flags = f
}
