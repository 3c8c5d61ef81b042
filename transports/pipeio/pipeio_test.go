package pipeio

import (
	"testing"

	"github.com/donball360/magenta/status"
)

func TestPairReadWrite(t *testing.T) {
	read, write := Pair(0)

	n, err := write.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}

	buf := make([]byte, 16)
	n, err = read.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, want hello", buf[:n])
	}
}

func TestReadShouldWaitOnEmptyBuffer(t *testing.T) {
	read, _ := Pair(0)
	_, err := read.Read(make([]byte, 8))
	if err != status.ErrShouldWait {
		t.Fatalf("err = %v, want ErrShouldWait", err)
	}
}

func TestReadEOFAfterWriterCloses(t *testing.T) {
	read, write := Pair(0)
	write.Close()

	n, err := read.Read(make([]byte, 8))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 (EOF)", n)
	}
}

func TestWriteAfterReaderClosesIsRemoteClosed(t *testing.T) {
	read, write := Pair(0)
	read.Close()

	_, err := write.Write([]byte("x"))
	if err != status.ErrRemoteClosed {
		t.Fatalf("err = %v, want ErrRemoteClosed", err)
	}
}

func TestWriteShouldWaitWhenFull(t *testing.T) {
	read, write := Pair(4)
	if _, err := write.Write([]byte("abcd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := write.Write([]byte("e")); err != status.ErrShouldWait {
		t.Fatalf("err = %v, want ErrShouldWait", err)
	}
	_ = read
}
