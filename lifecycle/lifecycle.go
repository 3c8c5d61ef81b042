// Package lifecycle implements process startup handle consumption and
// exit-time teardown (spec.md §2 component 9/§6 "startup handle
// consumption", grounded on unistd.c's __libc_extensions_init and
// mxio_exit). There is no real process-startup handle table under this
// module, so StartupHandle stands in for the kernel-passed (handle, info)
// pairs a real bootstrap would receive.
package lifecycle

import (
	"github.com/sirupsen/logrus"

	"github.com/donball360/magenta/cwd"
	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/posix"
	"github.com/donball360/magenta/transport"
	"github.com/donball360/magenta/transports/nullio"
)

// HandleType tags one startup handle's role, mirroring MX_HND_TYPE_MXIO_*.
type HandleType int

const (
	HandleRoot HandleType = iota
	HandleCWD
	HandleRemote
	HandlePipe
	HandleLogger
)

// FlagUseForStdio marks a REMOTE/PIPE handle that should additionally be
// duped into fds 0/1/2, mirroring MXIO_FLAG_USE_FOR_STDIO.
const FlagUseForStdio = 1 << 30

// StartupHandle is one (transport, type, fd-or-flags) entry a bootstrap
// hands to Init, the Go analogue of one (handle, handle_info) pair.
type StartupHandle struct {
	Type      HandleType
	Transport transport.Transport
	// FD is the target fd for HandleRemote/HandlePipe entries; it may be
	// ORed with FlagUseForStdio.
	FD int
}

// Init consumes a bootstrap's startup handles and builds a ready-to-use
// posix.Process: binds REMOTE/PIPE/LOGGER handles to their target fds,
// installs ROOT/CWD, falls back to nullio for any of fds 0/1/2 left
// unset, and defaults cwd to "/" when no PWD-equivalent is supplied
// (spec.md §6 "startup handle consumption").
func Init(handles []StartupHandle, pwd string, log logrus.FieldLogger) *posix.Process {
	if log == nil {
		log = logrus.StandardLogger()
	}

	table := fdtable.New()
	var root *fdtable.Entry
	var cwdEntry *fdtable.Entry
	stdioFD := -1

	for _, h := range handles {
		fd := h.FD
		if fd&FlagUseForStdio != 0 {
			fd &^= FlagUseForStdio
			if fd >= 0 {
				stdioFD = fd
			}
		}

		switch h.Type {
		case HandleRoot:
			root = fdtable.NewEntry(h.Transport, 0)
		case HandleCWD:
			cwdEntry = fdtable.NewEntry(h.Transport, 0)
		case HandleRemote, HandlePipe, HandleLogger:
			entry := fdtable.NewEntry(h.Transport, 0)
			if _, dc, serr := table.Bind(entry, fd, 0); serr != nil {
				log.WithError(serr).Warn("failed to bind startup handle")
			} else if dc != nil {
				dc.Run()
			}
		}
	}

	if root == nil {
		root = fdtable.NewEntry(nullio.New(), 0)
	}

	if cwdEntry == nil {
		root.IncRef()
		cwdEntry = root
	}
	cwdState := cwd.New(pwd, cwdEntry)

	var stdioSource *fdtable.Entry
	if stdioFD >= 0 {
		stdioSource = table.Lookup(stdioFD)
	}

	for fd := 0; fd < 3; fd++ {
		if e := table.Lookup(fd); e != nil {
			e.Release()
			continue
		}
		if stdioSource != nil {
			// Share the one looked-up Entry rather than wrapping its
			// Transport in a fresh Entry per slot, so dupcount on
			// stdioSource correctly tracks every fdtab slot aliasing it
			// (spec.md §8 invariant 1-2, S1: 0,1,2 all alias the same
			// transport). IncRef mirrors the reference Table.Dup takes
			// per additional slot via its own Lookup call.
			stdioSource.IncRef()
			if _, dc, serr := table.Bind(stdioSource, fd, 0); serr == nil {
				if dc != nil {
					dc.Run()
				}
			} else {
				stdioSource.Release()
			}
			continue
		}
		entry := fdtable.NewEntry(nullio.New(), 0)
		if _, dc, serr := table.Bind(entry, fd, 0); serr == nil {
			if dc != nil {
				dc.Run()
			}
		}
	}
	if stdioSource != nil {
		stdioSource.Release()
	}

	return posix.New(table, cwdState, root, log)
}

// Shutdown implements exit-time teardown (spec.md §6, unistd.c's
// mxio_exit): drains every live fd, closing each exactly once. A close
// failure is logged rather than propagated, matching mxio_exit's own
// best-effort teardown.
func Shutdown(p *posix.Process) {
	if err := p.Table.Drain(); err != nil {
		p.Log.WithError(err).Warn("error closing fds during shutdown")
	}
}
