package posix

import (
	"bytes"
	"time"

	"golang.org/x/sys/unix"

	"github.com/donball360/magenta/fdtable"
	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/resolve"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// openForMisc opens (dirfd, path) read-only just long enough to issue a
// single Misc control call against it, mirroring __mxio_open_at's reuse
// in fstatat/utimensat/faccessat/truncateat.
func (p *Process) openForMisc(dirfd int, path string, flags transport.OpenFlags) (transport.Transport, status.Status) {
	base, residual, serr := p.Resolver.Base(dirfd, path)
	if serr != nil {
		return nil, serr
	}
	defer base.Release()
	return base.Transport.Open(residual, flags, 0)
}

// Stat implements stat(2).
func (p *Process) Stat(path string) (transport.Attr, error) {
	return p.FStatAt(resolve.AtFDCWD, path, 0)
}

// FStat implements fstat(2).
func (p *Process) FStat(fd int) (transport.Attr, error) {
	e := p.Table.Lookup(fd)
	if e == nil {
		return transport.Attr{}, errnoErr(unix.EBADF)
	}
	defer e.Release()
	return p.statTransport(e.Transport)
}

// FStatAt implements fstatat(2). Only the flags value 0 is meaningful
// here: access-time / symlink-follow distinctions are not modeled
// (spec.md §1 non-goals).
func (p *Process) FStatAt(dirfd int, path string, flags int) (transport.Attr, error) {
	t, serr := p.openForMisc(dirfd, path, 0)
	if serr != nil {
		return transport.Attr{}, errnoErr(status.ToErrno(serr))
	}
	defer t.Close()
	return p.statTransport(t)
}

func (p *Process) statTransport(t transport.Transport) (transport.Attr, error) {
	reply, serr := t.Misc(transport.MiscStat, 0, nil, transport.AttrWireSize)
	if serr != nil {
		return transport.Attr{}, errnoErr(status.ToErrno(serr))
	}
	attr, ok := transport.DecodeAttr(reply)
	if !ok {
		return transport.Attr{}, errnoErr(unix.EIO)
	}
	return attr, nil
}

// Truncate implements truncate(2).
func (p *Process) Truncate(path string, length int64) error {
	t, serr := p.openForMisc(resolve.AtFDCWD, path, transport.OpenWriteOnly)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	defer t.Close()
	_, serr = t.Misc(transport.MiscTruncate, length, nil, 0)
	return errnoErr(status.ToErrno(serr))
}

// FTruncate implements ftruncate(2).
func (p *Process) FTruncate(fd int, length int64) error {
	e := p.Table.Lookup(fd)
	if e == nil {
		return errnoErr(unix.EBADF)
	}
	defer e.Release()
	_, serr := e.Transport.Misc(transport.MiscTruncate, length, nil, 0)
	return errnoErr(status.ToErrno(serr))
}

// UnlinkAt implements unlinkat(2) (spec.md §4.3 resolve_container, §4
// unlinkat).
func (p *Process) UnlinkAt(dirfd int, path string, flags int) error {
	dirpath, leaf, serr := p.Resolver.Container(dirfd, path)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	t, serr := p.openForMisc(dirfd, dirpath, transport.OpenDirectory)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	defer t.Close()
	_, serr = t.Misc(transport.MiscUnlink, 0, []byte(leaf), 0)
	return errnoErr(status.ToErrno(serr))
}

// Unlink implements unlink(2).
func (p *Process) Unlink(path string) error {
	return p.UnlinkAt(resolve.AtFDCWD, path, 0)
}

// twoPathOp packs (oldpath, newpath) into one NUL-separated buffer and
// submits it via Misc against root (both absolute) or cwd (both
// relative), matching unistd.c's two_path_op (spec.md §4.8).
func (p *Process) twoPathOp(op transport.MiscOp, oldpath, newpath string) error {
	if !resolve.SameOrigin(oldpath, newpath) {
		return errnoErr(status.ToErrno(status.ErrNotSupported))
	}

	var base *fdtable.Entry
	if len(oldpath) > 0 && oldpath[0] == '/' {
		base = p.Root
		base.IncRef()
	} else {
		base = p.CWD.Entry()
	}
	defer base.Release()

	var buf bytes.Buffer
	buf.WriteString(oldpath)
	buf.WriteByte(0)
	buf.WriteString(newpath)
	buf.WriteByte(0)

	_, serr := base.Transport.Misc(op, 0, buf.Bytes(), 0)
	return errnoErr(status.ToErrno(serr))
}

// Rename implements rename(2).
func (p *Process) Rename(oldpath, newpath string) error {
	return p.twoPathOp(transport.MiscRename, oldpath, newpath)
}

// Link implements link(2).
func (p *Process) Link(oldpath, newpath string) error {
	return p.twoPathOp(transport.MiscLink, oldpath, newpath)
}

// FSync implements fsync(2).
func (p *Process) FSync(fd int) error {
	e := p.Table.Lookup(fd)
	if e == nil {
		return errnoErr(unix.EBADF)
	}
	defer e.Release()
	_, serr := e.Transport.Misc(transport.MiscSync, 0, nil, 0)
	return errnoErr(status.ToErrno(serr))
}

// FDataSync implements fdatasync(2). As in unistd.c, this is implemented
// identically to fsync: there is no cheaper metadata-only path modeled
// (spec.md §1 non-goals: "access-time updates", related metadata
// shortcuts are likewise not distinguished).
func (p *Process) FDataSync(fd int) error {
	return p.FSync(fd)
}

// utimeNow / utimeOmit mirror UTIME_NOW / UTIME_OMIT; callers pass these
// sentinels via the times[1] (modify-time) slot when they want "now" or
// "leave unchanged" rather than an explicit time.
const (
	utimeNow  = (1 << 30) - 1
	utimeOmit = (1 << 30) - 2
)

// UtimeSpec is one entry of the times[2] array passed to
// utimens/utimensat/futimens: either an explicit time, or one of the
// UTIME_NOW/UTIME_OMIT sentinels via Now/Omit.
type UtimeSpec struct {
	Time time.Time
	Now  bool
	Omit bool
}

// NewUtimeSpec converts a raw (sec, nsec) struct timespec — nsec may carry
// the UTIME_NOW/UTIME_OMIT sentinels — into a UtimeSpec, the same
// translation mx_utimens applies before building its SetAttr request.
func NewUtimeSpec(sec, nsec int64) UtimeSpec {
	switch nsec {
	case utimeNow:
		return UtimeSpec{Now: true}
	case utimeOmit:
		return UtimeSpec{Omit: true}
	default:
		return UtimeSpec{Time: time.Unix(sec, nsec)}
	}
}

func (p *Process) utimens(t transport.Transport, times [2]UtimeSpec) error {
	var attr transport.SetAttr
	mtime := times[1]
	switch {
	case mtime.Now:
		attr.ModifyTime = khandle.TimeGet()
	case mtime.Omit:
		// valid bit left unset below: no change applied.
	default:
		attr.ModifyTime = mtime.Time
	}
	if !mtime.Omit {
		attr.Valid |= transport.AttrValidMTime
	}
	// Access-time is deliberately never updated (spec.md §1 non-goals,
	// §9 "access-time for utimens is not updated").

	payload := transport.EncodeSetAttr(attr)
	_, serr := t.Misc(transport.MiscSetAttr, 0, payload, 0)
	return errnoErr(status.ToErrno(serr))
}

// UtimensAt implements utimensat(2). AT_SYMLINK_NOFOLLOW is rejected
// EINVAL, matching unistd.c's explicit "TODO(orr): AT_SYMLINK_NOFOLLOW"
// stub turned into a hard rejection (spec.md §6).
func (p *Process) UtimensAt(dirfd int, path string, times [2]UtimeSpec, flags int) error {
	const atSymlinkNofollow = 0x100
	if flags&atSymlinkNofollow != 0 {
		return errnoErr(unix.EINVAL)
	}
	t, serr := p.openForMisc(dirfd, path, 0)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	defer t.Close()
	return p.utimens(t, times)
}

// FutimeNS implements futimens(2). It takes and releases a reference on
// the fd's table entry like the other fd-based calls, and operates
// directly on that entry's transport without the extra path resolution
// and open/close round trip that UtimensAt performs.
func (p *Process) FutimeNS(fd int, times [2]UtimeSpec) error {
	e := p.Table.Lookup(fd)
	if e == nil {
		return errnoErr(unix.EBADF)
	}
	defer e.Release()
	return p.utimens(e.Transport, times)
}

// FAccessAt implements faccessat(2). Permission bits are not modeled;
// existence is used as a proxy for F_OK/R_OK/W_OK/X_OK (spec.md §1
// non-goals), matching unistd.c's faccessat.
func (p *Process) FAccessAt(dirfd int, path string, mode int, flags int) error {
	const atEAccess = 0x200
	if flags&^atEAccess != 0 {
		return errnoErr(unix.EINVAL)
	}
	const fOK, rOK, wOK, xOK = 0, 4, 2, 1
	allowed := rOK | wOK | xOK
	if mode != fOK && mode&^allowed != 0 {
		return errnoErr(unix.EINVAL)
	}

	t, serr := p.openForMisc(dirfd, path, 0)
	if serr != nil {
		return errnoErr(status.ToErrno(serr))
	}
	defer t.Close()
	_, err := p.statTransport(t)
	return err
}
