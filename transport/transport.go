// Package transport defines the polymorphic I/O object every fd in the
// table ultimately dispatches to (spec.md §3 "Transport", §4.2 "Transport
// vtable"). It plays the role gvisor's vfs.FileDescription interface plays
// for the sentry: a single dispatch surface that open/read/write/poll/etc.
// all funnel through regardless of which concrete backing object serves a
// given fd.
package transport

import (
	"time"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
)

// Flags is a bitset of per-transport flags, the Go analogue of mxio_t's
// flags field.
type Flags uint32

const (
	// FlagNonblock marks a transport whose read/write should surface
	// ErrShouldWait as EAGAIN rather than have the caller retry-after-wait.
	FlagNonblock Flags = 1 << iota
	// FlagCloexec is the descriptor-flag bit visible to F_GETFD/F_SETFD.
	// Close-on-exec is declared but never acted on (spec.md §9 Open
	// Questions): nothing in this module execs.
	FlagCloexec
)

// Whence mirrors lseek's whence argument.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// MiscOp names a typed control message carried over Misc (spec.md
// "misc op" in the glossary).
type MiscOp int

const (
	MiscStat MiscOp = iota
	MiscSetAttr
	MiscTruncate
	MiscReaddir
	MiscUnlink
	MiscRename
	MiscLink
	MiscSync
)

// ReaddirCmd selects reset-vs-continue behavior for a MiscReaddir call,
// matching READDIR_CMD_RESET / READDIR_CMD_NONE in the original.
type ReaddirCmd int

const (
	ReaddirContinue ReaddirCmd = iota
	ReaddirReset
)

// Attr is the subset of file metadata the core surfaces through
// stat/fstat/fstatat, the Go analogue of vnattr_t.
type Attr struct {
	Mode       uint32
	Inode      uint64
	Size       int64
	Nlink      uint32
	CreateTime time.Time
	ModifyTime time.Time
}

// SetAttrValid marks which Attr fields a SetAttr misc call should apply.
type SetAttrValid uint32

const (
	AttrValidMTime SetAttrValid = 1 << iota
	AttrValidATime
)

// SetAttr is the payload of a MiscSetAttr call.
type SetAttr struct {
	Valid      SetAttrValid
	ModifyTime time.Time
	AccessTime time.Time
}

// Events is a POSIX-style event bitmask, the Go analogue of the uint32
// event masks poll/epoll pass to wait_begin/wait_end.
type Events uint32

const (
	EventReadable Events = 1 << iota
	EventWritable
	EventError
	EventHangup
	EventInvalid
)

// Transport is the vtable every I/O object in the fd table implements
// (spec.md §4.2). Every method is non-blocking; blocking POSIX semantics
// are synthesized on top by the posix package using WaitBegin/WaitEnd plus
// khandle.ObjectWaitOne (spec.md §4.4).
type Transport interface {
	// Read performs a non-blocking stream read. It returns
	// status.ErrShouldWait if no data is currently available.
	Read(buf []byte) (n int, err status.Status)
	// Write performs a non-blocking stream write.
	Write(buf []byte) (n int, err status.Status)
	// ReadAt and WriteAt are the positional variants used by pread/pwrite.
	ReadAt(buf []byte, off int64) (n int, err status.Status)
	WriteAt(buf []byte, off int64) (n int, err status.Status)
	// Seek repositions a seekable transport's cursor; non-seekable
	// transports return status.ErrNotSupported.
	Seek(off int64, whence Whence) (newOffset int64, err status.Status)
	// Open is implemented only by directory-like transports; it resolves
	// a single path component (or chain) relative to this transport and
	// returns a freshly constructed Transport for it.
	Open(path string, flags OpenFlags, mode uint32) (Transport, status.Status)
	// Clone produces an independent Transport sharing this one's backing
	// resource, for handoff to another process (spec.md §4.2 "clone",
	// mxio_clone_fd/mxio_clone_root). The original Transport is left
	// usable. Transports with nothing meaningful to hand out return
	// status.ErrNotSupported.
	Clone() (Transport, status.Status)
	// Unwrap is like Clone but gives up ownership of the backing
	// resource to the returned Transport (spec.md §4.2 "unwrap",
	// mxio_transfer_fd): the caller must not use this Transport again
	// once Unwrap succeeds. Transports with nothing to hand out return
	// status.ErrNotSupported.
	Unwrap() (Transport, status.Status)
	// Misc carries a typed control message (stat, setattr, truncate,
	// readdir, unlink, rename, link, sync).
	Misc(op MiscOp, arg int64, in []byte, maxReply int) (reply []byte, err status.Status)
	// Ioctl is the device-level control channel.
	Ioctl(op int, in []byte, outLen int) (out []byte, err status.Status)
	// PosixIoctl handles a POSIX ioctl(2) request.
	PosixIoctl(req int, arg uintptr) status.Status
	// WaitBegin produces a kernel handle and a signal mask equivalent to
	// the requested POSIX events. A nil handle means the transport does
	// not support waiting (spec.md §4.4: "An invalid handle from
	// wait_begin yields EINVAL").
	WaitBegin(events Events) (h *khandle.Handle, waitfor khandle.Signals)
	// WaitEnd is the reverse mapping, called after a wait completes.
	WaitEnd(pending khandle.Signals) (events Events)
	// GetVmo is the optional memory-mapping accessor (spec.md §4.2
	// "get_vmo"); transports with no mappable backing store return
	// status.ErrNotSupported.
	GetVmo() (h *khandle.Handle, offset int64, length int64, err status.Status)
	// Close releases the transport's backing resource. Idempotent.
	Close() status.Status
}

// OpenFlags mirrors the O_* flags recognized by open/openat (spec.md §6).
type OpenFlags uint32

const (
	OpenReadOnly OpenFlags = 0
	OpenWriteOnly OpenFlags = 1 << (iota - 1)
	OpenReadWrite
	OpenCreate
	OpenExclusive
	OpenDirectory
	OpenNonblock
	OpenTruncate
)

// AccessMode mirrors read/write.
func (f OpenFlags) AccessMode() OpenFlags {
	return f & (OpenWriteOnly | OpenReadWrite)
}
