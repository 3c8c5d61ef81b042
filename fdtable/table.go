// Package fdtable implements the process-wide file-descriptor table: a
// fixed-size array mapping small non-negative integers to refcounted
// transport entries, guarded by a single mutex (spec.md §3 "Fdtab", §4.1).
//
// It is grounded on gvisor's pkg/sentry/kernel.FDTable (fd_table.go):
// bind/unbind/lookup/dup here are a direct generalization of NewFDAt/
// Remove/Get/NewFDs onto the mxio_bind_to_fd/mxio_unbind_from_fd/
// __mxio_fd_to_io naming and dupcount discipline from unistd.c, since the
// spec's ownership model (fdtab slots share a transport via dupcount,
// distinct from the in-flight-caller refcount gvisor's FDTable folds into
// a single *fs.File refcount) needs the two counters kept apart.
package fdtable

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/donball360/magenta/status"
)

// MaxFD is the size of the table (spec.md §3: "1024-class").
const MaxFD = 1024

// Table is the process-wide fd table. The zero value is not usable; use
// New.
type Table struct {
	mu   sync.Mutex
	slots [MaxFD]*Entry
}

// New allocates an empty table.
func New() *Table {
	return &Table{}
}

// deferredClose is the token bind/unbind/close hand back instead of
// closing a transport while still holding the table mutex (spec.md §4.1
// "close outside the lock", §9 "enforce structurally by having bind
// return a deferred-close token"). Callers must call Run after releasing
// any lock they hold.
type deferredClose struct {
	entry *Entry
}

// Run closes the entry's transport and then releases the fd table's own
// reference share. Close fires unconditionally once a deferredClose token
// exists for an entry (dupcount already hit zero under the lock); it does
// not wait for any other in-flight caller still holding a reference, the
// same way unistd.c's close()/mxio_bind_to_fd call ops->close() before
// mxio_release() regardless of the atomic refcount. Safe to call on a nil
// token.
func (d *deferredClose) Run() status.Status {
	if d == nil || d.entry == nil {
		return nil
	}
	err := d.entry.Transport.Close()
	d.entry.Release()
	return err
}

// Bind installs entry at fd, or at the first free slot >= startingFD if
// fd < 0. On success it increments entry's dupcount and returns the bound
// fd. If that slot already held another entry, the old entry's dupcount is
// decremented; if that drops it to zero, the returned deferredClose will
// close it once the caller runs it outside the table lock (spec.md §4.1
// bind).
func (t *Table) Bind(entry *Entry, fd int, startingFD int) (boundFD int, dc *deferredClose, err status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd < 0 {
		found := -1
		for i := startingFD; i < MaxFD; i++ {
			if t.slots[i] == nil {
				found = i
				break
			}
		}
		if found < 0 {
			return -1, nil, status.ErrNoResources
		}
		fd = found
	} else if fd >= MaxFD {
		return -1, nil, status.ErrInvalidArgs
	}

	old := t.slots[fd]
	if old != nil {
		old.dupcount--
		if old.dupcount == 0 {
			dc = &deferredClose{entry: old}
		} else {
			old.Release()
		}
	}

	entry.dupcount++
	t.slots[fd] = entry
	return fd, dc, nil
}

// Unbind detaches fd from the table and returns its entry with a single
// live reference, provided no other slot shares it (dupcount == 1) and no
// operation is currently in flight on it (refcount == 1). Otherwise it
// fails EBUSY (spec.md §4.1 unbind, mapped from ERR_UNAVAILABLE).
func (t *Table) Unbind(fd int) (*Entry, status.Status) {
	if fd < 0 || fd >= MaxFD {
		return nil, status.ErrInvalidArgs
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.slots[fd]
	if e == nil {
		return nil, status.ErrInvalidArgs
	}
	if e.dupcount > 1 {
		return nil, status.ErrUnavailable
	}
	if e.Refcount() > 1 {
		return nil, status.ErrUnavailable
	}

	e.dupcount = 0
	t.slots[fd] = nil
	return e, nil
}

// Lookup acquires a reference to fd's entry and returns it, or nil if fd
// is unbound. Callers must call Release when done.
func (t *Table) Lookup(fd int) *Entry {
	if fd < 0 || fd >= MaxFD {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.slots[fd]
	if e == nil {
		return nil
	}
	e.IncRef()
	return e
}

// Dup looks up oldFD's entry and binds it (sharing dupcount) under a new
// slot, preferring newFD if >= 0 else the first free slot >= startingFD
// (spec.md §4.1 dup). On a failed bind, the reference taken by Lookup is
// released.
func (t *Table) Dup(oldFD, newFD, startingFD int) (boundFD int, dc *deferredClose, err status.Status) {
	e := t.Lookup(oldFD)
	if e == nil {
		return -1, nil, status.ErrBadHandle
	}
	fd, dc, err := t.Bind(e, newFD, startingFD)
	if err != nil {
		e.Release()
		return -1, nil, err
	}
	return fd, dc, nil
}

// Close unbinds fd outright (regardless of in-flight operations: close
// does not wait for other holders, it only decrements dupcount) and
// returns a deferred-close token if this was the last fdtab slot sharing
// the transport. This matches unistd.c's close(), which is stricter than
// Unbind/bind's EBUSY checks — close always succeeds for a valid fd.
func (t *Table) Close(fd int) (dc *deferredClose, err status.Status) {
	if fd < 0 || fd >= MaxFD {
		return nil, status.ErrBadHandle
	}

	t.mu.Lock()
	e := t.slots[fd]
	if e == nil {
		t.mu.Unlock()
		return nil, status.ErrBadHandle
	}
	t.slots[fd] = nil
	e.dupcount--
	last := e.dupcount == 0
	t.mu.Unlock()

	if last {
		return &deferredClose{entry: e}, nil
	}
	e.Release()
	return nil, nil
}

// ForEach calls fn for every currently-bound fd, each call seeing an
// IncRef'd entry that is released before ForEach returns to the caller.
// It is used by Drain and by diagnostics.
func (t *Table) ForEach(fn func(fd int, e *Entry)) {
	t.mu.Lock()
	type pair struct {
		fd int
		e  *Entry
	}
	var live []pair
	for fd, e := range t.slots {
		if e != nil {
			e.IncRef()
			live = append(live, pair{fd, e})
		}
	}
	t.mu.Unlock()

	for _, p := range live {
		fn(p.fd, p.e)
		p.e.Release()
	}
}

// Drain walks every slot, clears it, decrements its dupcount, and closes
// any entry whose dupcount falls to zero, outside the table lock. The
// closes run concurrently via errgroup.Group, the same fan-out-and-join
// shape gvisor reaches for whenever a teardown path has to wait on
// several independent closers; the first non-nil close error is returned
// after every entry has been given a chance to close. Used by the exit
// hook (spec.md §4.6).
func (t *Table) Drain() error {
	t.mu.Lock()
	var toClose []*Entry
	for fd, e := range t.slots {
		if e == nil {
			continue
		}
		t.slots[fd] = nil
		e.dupcount--
		if e.dupcount == 0 {
			toClose = append(toClose, e)
		} else {
			e.Release()
		}
	}
	t.mu.Unlock()

	var g errgroup.Group
	for _, e := range toClose {
		e := e
		g.Go(func() error {
			defer e.Release()
			return e.Transport.Close()
		})
	}
	return g.Wait()
}

// Size reports the number of bound slots.
func (t *Table) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.slots {
		if e != nil {
			n++
		}
	}
	return n
}
