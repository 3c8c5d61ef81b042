package logsink

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/transport"
)

func TestWriteLogsOneLinePerNewline(t *testing.T) {
	log := logrus.New()
	var buf strings.Builder
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	s := New(log, logrus.InfoLevel)
	n, err := s.Write([]byte("first\nsecond\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("first\nsecond\n") {
		t.Fatalf("n = %d", n)
	}
	out := buf.String()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("output = %q, want both lines logged", out)
	}
}

func TestReadIsAlwaysEOF(t *testing.T) {
	s := New(nil, logrus.InfoLevel)
	n, err := s.Read(make([]byte, 8))
	if err != nil || n != 0 {
		t.Fatalf("Read = (%d, %v), want (0, nil)", n, err)
	}
}

func TestWaitBeginMapsOnlyWritable(t *testing.T) {
	s := New(nil, logrus.InfoLevel)

	h, waitfor := s.WaitBegin(transport.EventReadable)
	if h == nil {
		t.Fatalf("WaitBegin returned nil handle")
	}
	if waitfor != 0 {
		t.Fatalf("waitfor = %v, want 0 for a readable-only request", waitfor)
	}

	_, waitfor = s.WaitBegin(transport.EventReadable | transport.EventWritable)
	if waitfor != khandle.SignalWritable {
		t.Fatalf("waitfor = %v, want SignalWritable once writable is requested", waitfor)
	}
}
