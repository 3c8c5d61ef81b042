// Package cwd holds the process-wide current-working-directory state: a
// normalized textual path plus the directory transport it names (spec.md
// §3 "CWD state", §4.3 update_cwd_path). It is guarded by its own mutex,
// which may be taken outside (before) the fdtable mutex — never the
// reverse (spec.md §5 locking order: cwd mutex → fdtab mutex).
package cwd

import (
	"strings"
	"sync"

	"github.com/donball360/magenta/fdtable"
)

// PathMax bounds the normalized cwd path, mirroring PATH_MAX.
const PathMax = 4096

// sentinelUnknown is substituted when normalization would overflow
// PathMax, matching update_cwd_path's "(unknown)" fallback (spec.md §4.3,
// §7 "Fatal conditions").
const sentinelUnknown = "(unknown)"

// State is the process-wide cwd: a normalized path string plus the
// directory entry it resolves to.
type State struct {
	mu    sync.Mutex
	path  string
	entry *fdtable.Entry
}

// New seeds cwd state from an initial path (e.g. the PWD environment
// variable, spec.md §6 "Environment") and directory entry.
func New(initialPath string, entry *fdtable.Entry) *State {
	s := &State{path: "/", entry: entry}
	if initialPath != "" {
		s.updatePathLocked(initialPath)
	}
	return s
}

// Path returns the current normalized cwd path (getcwd's fast path: no
// round trip through the transport, spec.md §3 "CWD state").
func (s *State) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Entry returns the current cwd directory entry, with an added reference
// the caller must release.
func (s *State) Entry() *fdtable.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry.IncRef()
	return s.entry
}

// Replace installs a new directory entry for a newly chdir'd-to path and
// normalizes the textual path to match, returning the previous entry so
// the caller can close it once both locks are released (spec.md §4.6
// chdir: "old->ops->close(old)" happens after the table lock producing
// dupcount adjustments, but the cwd mutex is what actually guards the
// swap here).
func (s *State) Replace(path string, entry *fdtable.Entry) (old *fdtable.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.entry
	s.entry = entry
	s.updatePathLocked(path)
	return old
}

// updatePathLocked normalizes path the way update_cwd_path does: a
// leading '/' resets to root, '.' segments are skipped, '..' pops the
// last segment (never past '/'), repeated separators collapse, and
// overflow falls back to the unknown sentinel. s.mu must be held.
func (s *State) updatePathLocked(path string) {
	if len(path) == 0 {
		return
	}
	if path[0] == '/' {
		s.path = "/"
		path = path[1:]
	}

	for len(path) > 0 {
		var seg string
		if idx := strings.IndexByte(path, '/'); idx >= 0 {
			seg = path[:idx]
			path = path[idx+1:]
		} else {
			seg = path
			path = ""
		}

		switch seg {
		case "":
			continue
		case ".":
			continue
		case "..":
			if idx := strings.LastIndexByte(s.path, '/'); idx >= 0 {
				if idx == 0 {
					s.path = "/"
				} else {
					s.path = s.path[:idx]
				}
			} else {
				s.path = sentinelUnknown
				return
			}
		default:
			if len(s.path)+len(seg)+2 >= PathMax {
				s.path = sentinelUnknown
				return
			}
			if s.path == "/" {
				s.path = "/" + seg
			} else {
				s.path = s.path + "/" + seg
			}
		}
	}
}
