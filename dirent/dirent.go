// Package dirent implements the buffered directory-stream layer above a
// directory fd: opendir/readdir/closedir/rewinddir/dirfd/fdopendir
// (spec.md §2 component 6, §4 "dirent stream"). It is grounded on
// unistd.c's __dirstream plus internal_opendir/readdir/rewinddir/closedir,
// generalized from a raw mxio_t* held in the struct onto this module's
// posix.Process + fdtable.Table pair, and on gvisor's directory-entry
// buffering in sys_getdents.go for the refill-on-exhaustion loop.
package dirent

import (
	"encoding/binary"
	"sync"

	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// Entry is one directory entry as returned by Read, the Go analogue of
// struct dirent's subset this module cares about.
type Entry struct {
	Name  string
	Inode uint64
	Type  uint8
}

// Directory type bits for Entry.Type, mirroring the DT_* constants.
const (
	TypeUnknown   uint8 = 0
	TypeFile      uint8 = 8
	TypeDirectory uint8 = 4
)

const scratchSize = 8192

// Stream is a buffered directory iterator over one directory fd: a
// scratch buffer refilled via MiscReaddir, a cursor into it, and the fd
// it was opened against. It is not safe for concurrent use without
// external synchronization beyond what its own mutex provides for the
// read/rewind/close triad, matching __dirstream's own single "lock"
// field (spec.md §5: dirent streams are not one of the structures with a
// documented concurrency contract beyond mutual exclusion of their own
// operations).
type Stream struct {
	mu sync.Mutex

	table *fdtable.Table
	fd    int
	entry *fdtable.Entry

	buf    []byte
	cursor int
	atEOF  bool

	// pendingReset mirrors dir->ptr == NULL in internal_opendir/readdir:
	// true whenever the next refill should issue READDIR_CMD_RESET rather
	// than READDIR_CMD_NONE. Set on Open (nothing has been read yet) and
	// on Rewind; cleared once the reset has actually been issued.
	pendingReset bool
}

// Open implements opendir(3)/fdopendir(3): wrap an already-bound
// directory fd in a Stream. The caller retains ownership of fd; Close
// does not close it (matching fdopendir's contract that the fd is
// "taken over" logically but the underlying close happens through the
// normal fd-table path, not a second one here) — callers using opendir's
// path-based form should close the fd themselves once the Stream is
// closed, exactly as unistd.c's closedir calls close(dirfd) itself.
func Open(table *fdtable.Table, fd int) (*Stream, status.Status) {
	e := table.Lookup(fd)
	if e == nil {
		return nil, status.ErrBadHandle
	}
	return &Stream{table: table, fd: fd, entry: e, pendingReset: true}, nil
}

// DirFD implements dirfd(3).
func (s *Stream) DirFD() int {
	return s.fd
}

// refillLocked issues one MiscReaddir round trip, picking
// READDIR_CMD_RESET vs READDIR_CMD_NONE from pendingReset rather than a
// caller-supplied command: rewinddir only marks the cursor for reset, the
// actual reset RPC happens lazily on the next refill (spec.md §4.7,
// original_source/unistd.c:1360/1372-1379).
func (s *Stream) refillLocked() status.Status {
	cmd := transport.ReaddirContinue
	if s.pendingReset {
		cmd = transport.ReaddirReset
	}
	reply, serr := s.entry.Transport.Misc(transport.MiscReaddir, int64(cmd), nil, scratchSize)
	if serr != nil {
		return serr
	}
	s.pendingReset = false
	s.buf = reply
	s.cursor = 0
	s.atEOF = len(reply) == 0
	return nil
}

// Read implements readdir(3): returns the next entry, or (nil, nil) at
// end of stream. The wire format read out of the scratch buffer is a
// simple length-prefixed record: 8-byte inode, 1 type byte, 2-byte
// little-endian name length, then the name bytes — a minimal analogue of
// vdirent_t sized for this module's in-memory transports rather than
// ported byte-for-byte from the original's packed struct.
func (s *Stream) Read() (*Entry, status.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if ent, ok := s.decodeNextLocked(); ok {
			return ent, nil
		}
		if s.atEOF {
			return nil, nil
		}
		if serr := s.refillLocked(); serr != nil {
			return nil, serr
		}
		if s.atEOF && len(s.buf) == 0 {
			return nil, nil
		}
	}
}

const directRecordHeader = 8 + 1 + 2

func (s *Stream) decodeNextLocked() (*Entry, bool) {
	rest := s.buf[s.cursor:]
	if len(rest) < directRecordHeader {
		return nil, false
	}
	inode := binary.LittleEndian.Uint64(rest[0:8])
	typ := rest[8]
	nameLen := int(binary.LittleEndian.Uint16(rest[9:11]))
	if len(rest) < directRecordHeader+nameLen {
		return nil, false
	}
	name := string(rest[directRecordHeader : directRecordHeader+nameLen])
	s.cursor += directRecordHeader + nameLen
	return &Entry{Name: name, Inode: inode, Type: typ}, true
}

// Rewind implements rewinddir(3): marks the cursor for reset without
// issuing any I/O (spec.md §4.7). The actual READDIR_CMD_RESET round trip
// happens lazily inside the next Read's refill.
func (s *Stream) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	s.cursor = 0
	s.atEOF = false
	s.pendingReset = true
}

// Close implements closedir(3): releases this Stream's reference on the
// fd's entry. It does not close the fd itself (see Open's doc comment).
func (s *Stream) Close() status.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return nil
	}
	s.entry.Release()
	s.entry = nil
	return nil
}

// EncodeEntry serializes an Entry into the wire record decodeNextLocked
// expects, for use by transports implementing MiscReaddir.
func EncodeEntry(e Entry) []byte {
	buf := make([]byte, directRecordHeader+len(e.Name))
	binary.LittleEndian.PutUint64(buf[0:8], e.Inode)
	buf[8] = e.Type
	binary.LittleEndian.PutUint16(buf[9:11], uint16(len(e.Name)))
	copy(buf[directRecordHeader:], e.Name)
	return buf
}
