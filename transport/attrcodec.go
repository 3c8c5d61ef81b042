package transport

import (
	"encoding/binary"
	"time"
)

func unixNanoTime(nsec uint64) time.Time {
	if nsec == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(nsec)).UTC()
}

// AttrWireSize is the fixed size of an encoded Attr, matching the
// NodeAttributes wire layout a remote transport's MiscStat reply fills in.
const AttrWireSize = 4 + 4 + 8 + 8 + 8 + 8

// EncodeAttr serializes attr into its fixed-size wire form.
func EncodeAttr(attr Attr) []byte {
	buf := make([]byte, AttrWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], attr.Mode)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(attr.Nlink))
	binary.LittleEndian.PutUint64(buf[8:16], attr.Inode)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(attr.Size))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(attr.CreateTime.UnixNano()))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(attr.ModifyTime.UnixNano()))
	return buf
}

// DecodeAttr parses the wire form EncodeAttr produces. It reports false if
// buf is short, the same defensive check mxio_stat applies to a remote
// reply before trusting it.
func DecodeAttr(buf []byte) (Attr, bool) {
	if len(buf) < AttrWireSize {
		return Attr{}, false
	}
	var attr Attr
	attr.Mode = binary.LittleEndian.Uint32(buf[0:4])
	attr.Nlink = binary.LittleEndian.Uint32(buf[4:8])
	attr.Inode = binary.LittleEndian.Uint64(buf[8:16])
	attr.Size = int64(binary.LittleEndian.Uint64(buf[16:24]))
	attr.CreateTime = unixNanoTime(binary.LittleEndian.Uint64(buf[24:32]))
	attr.ModifyTime = unixNanoTime(binary.LittleEndian.Uint64(buf[32:40]))
	return attr, true
}

// SetAttrWireSize is the fixed size of an encoded SetAttr.
const SetAttrWireSize = 4 + 8 + 8

// EncodeSetAttr serializes a SetAttr request for transmission via Misc.
func EncodeSetAttr(attr SetAttr) []byte {
	buf := make([]byte, SetAttrWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(attr.Valid))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(attr.ModifyTime.UnixNano()))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(attr.AccessTime.UnixNano()))
	return buf
}

// DecodeSetAttr parses the wire form EncodeSetAttr produces.
func DecodeSetAttr(buf []byte) (SetAttr, bool) {
	if len(buf) < SetAttrWireSize {
		return SetAttr{}, false
	}
	var attr SetAttr
	attr.Valid = SetAttrValid(binary.LittleEndian.Uint32(buf[0:4]))
	attr.ModifyTime = unixNanoTime(binary.LittleEndian.Uint64(buf[4:12]))
	attr.AccessTime = unixNanoTime(binary.LittleEndian.Uint64(buf[12:20]))
	return attr, true
}
