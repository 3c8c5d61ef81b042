package remoteio

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// fakeServer answers exactly the requests this test issues against an
// in-memory loopback connection, encoding replies with the same
// writeFrame/readFrame framing the client uses, so the test exercises the
// real wire format rather than a mocked Transport.
func fakeServer(t *testing.T, conn net.Conn, data []byte) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		opByte, err := r.ReadByte()
		if err != nil {
			return
		}
		arg, err := binary.ReadVarint(r)
		if err != nil {
			return
		}
		length, err := binary.ReadUvarint(r)
		if err != nil {
			return
		}
		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
		}

		var reply []byte
		code := statusToCode(nil)
		switch opcode(opByte) {
		case opRead:
			reply = data
		case opWrite:
			reply = make([]byte, 4)
			binary.LittleEndian.PutUint32(reply, uint32(len(payload)))
		case opClose:
			w.WriteByte(byte(code))
			w.WriteByte(0)
			w.Flush()
			return
		case opClone, opUnwrap:
			// no payload; codeOK acks the clone/unwrap request
		default:
			code = statusToCode(status.ErrNotSupported)
		}
		_ = arg

		w.WriteByte(byte(code))
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(reply)))
		w.Write(lenBuf[:n])
		if len(reply) > 0 {
			w.Write(reply)
		}
		w.Flush()
	}
}

func TestRemoteReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go fakeServer(t, server, []byte("hello"))

	rm := Dial(client)
	defer server.Close()

	buf := make([]byte, 16)
	n, serr := rm.Read(buf)
	if serr != nil {
		t.Fatalf("Read: %v", serr)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, want %q", buf[:n], "hello")
	}

	n, serr = rm.Write([]byte("world"))
	if serr != nil {
		t.Fatalf("Write: %v", serr)
	}
	if n != 5 {
		t.Fatalf("Write n = %d, want 5", n)
	}
}

func TestRemoteCloneAndUnwrap(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go fakeServer(t, server, nil)

	rm := Dial(client)
	defer server.Close()

	cloned, serr := rm.Clone()
	if serr != nil {
		t.Fatalf("Clone: %v", serr)
	}
	if cloned != transport.Transport(rm) {
		t.Fatalf("Clone returned a different Transport than rm")
	}

	unwrapped, serr := rm.Unwrap()
	if serr != nil {
		t.Fatalf("Unwrap: %v", serr)
	}
	if unwrapped != transport.Transport(rm) {
		t.Fatalf("Unwrap returned a different Transport than rm")
	}
}

func TestRemoteUnsupportedOp(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go fakeServer(t, server, nil)

	rm := Dial(client)
	defer server.Close()

	_, serr := rm.Seek(0, 0)
	if status.ToErrno(serr) == 0 {
		t.Fatalf("Seek: expected an error, got none")
	}

	time.Sleep(time.Millisecond)
}
