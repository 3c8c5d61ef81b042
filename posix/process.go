// Package posix implements the core POSIX call surface (spec.md §2
// component 6, §4.1-§4.8): open/openat, read/write and their positional
// and vector forms, lseek, close, dup family, fcntl, truncate, stat
// family, mkdir, unlink, link, rename, fsync, utimens family, pipe,
// faccessat, getcwd/chdir, isatty, umask, ioctl. Every call here mirrors
// one function from mxio/unistd.c, generalized from mxio_t's C vtable
// onto transport.Transport and from mxio_lock/cwd_lock onto fdtable.Table
// and cwd.State.
package posix

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/donball360/magenta/cwd"
	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/resolve"
	"github.com/donball360/magenta/status"
)

// Process is the process-wide POSIX compatibility state: the fd table,
// the cwd, the root transport, and the path resolver built from them.
// There is exactly one Process per running program, installed by the
// lifecycle package's startup hook (spec.md §9 "process-level singleton
// owned by the runtime").
type Process struct {
	Table *fdtable.Table
	CWD   *cwd.State
	Root  *fdtable.Entry
	Resolver *resolve.Resolver

	umask uint32 // accessed atomically

	Log logrus.FieldLogger
}

// New builds a Process around an already-populated table/cwd/root triple
// (startup is responsible for populating them, see the lifecycle
// package).
func New(table *fdtable.Table, cwdState *cwd.State, root *fdtable.Entry, log logrus.FieldLogger) *Process {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Process{
		Table: table,
		CWD:   cwdState,
		Root:  root,
		Resolver: &resolve.Resolver{Root: root, CWD: cwdState, Table: table},
		Log:   log,
	}
}

// Umask returns the current process umask.
func (p *Process) Umask() uint32 {
	return atomic.LoadUint32(&p.umask)
}

// SetUmask installs a new umask (masked to the low 9 bits) and returns
// the previous value (spec.md §4 umask).
func (p *Process) SetUmask(mask uint32) uint32 {
	return atomic.SwapUint32(&p.umask, mask&0o777)
}

// logCloseErr logs the result of running a table deferred-close token
// rather than propagating it: close errors from a displaced fd are not
// attributable to the caller's own syscall (spec.md §4.1 "close outside
// the lock"). Callers run the token themselves, outside any table lock.
func (p *Process) logCloseErr(err status.Status) {
	if err != nil {
		p.Log.WithError(err).Warn("transport close failed")
	}
}

