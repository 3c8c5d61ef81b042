// Package logsink implements a write-only Transport that forwards every
// write as a structured log line, a backing transport for a LOGGER-typed
// startup handle (spec.md §2 component 10 "Transport implementations",
// grounded on gvisor's pkg/v2/service.go use of logrus for its own
// operational logging, generalized here into a per-fd sink instead of a
// single process-wide logger call site).
package logsink

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/donball360/magenta/khandle"
	"github.com/donball360/magenta/status"
	"github.com/donball360/magenta/transport"
)

// Sink is a Transport whose Write emits one log line (or more, split on
// newlines) at the configured level, and whose Read always returns EOF:
// a LOGGER handle has no readable backing store.
type Sink struct {
	mu     sync.Mutex
	log    logrus.FieldLogger
	level  logrus.Level
	handle *khandle.Handle
}

// New builds a Sink that logs through log at the given level (typically
// logrus.InfoLevel for a stdout-equivalent fd, logrus.ErrorLevel for
// stderr).
func New(log logrus.FieldLogger, level logrus.Level) *Sink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := khandle.NewHandle()
	h.SetSignals(khandle.SignalWritable)
	return &Sink{log: log, level: level, handle: h}
}

// logAtLevel dispatches to the FieldLogger method matching level: the
// interface exposes one method per level rather than a generic Log call.
func logAtLevel(log logrus.FieldLogger, level logrus.Level, line string) {
	switch level {
	case logrus.PanicLevel:
		log.Panic(line)
	case logrus.FatalLevel:
		log.Fatal(line)
	case logrus.ErrorLevel:
		log.Error(line)
	case logrus.WarnLevel:
		log.Warn(line)
	case logrus.InfoLevel:
		log.Info(line)
	case logrus.DebugLevel, logrus.TraceLevel:
		log.Debug(line)
	default:
		log.Info(line)
	}
}

func (s *Sink) Read(buf []byte) (int, status.Status) {
	return 0, nil
}

func (s *Sink) Write(buf []byte) (int, status.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(buf), "\n"), "\n") {
		if line == "" {
			continue
		}
		logAtLevel(s.log, s.level, line)
	}
	return len(buf), nil
}

func (s *Sink) ReadAt(buf []byte, off int64) (int, status.Status) {
	return -1, status.ErrNotSupported
}

func (s *Sink) WriteAt(buf []byte, off int64) (int, status.Status) {
	return s.Write(buf)
}

func (s *Sink) Seek(off int64, whence transport.Whence) (int64, status.Status) {
	return -1, status.ErrNotSupported
}

func (s *Sink) Open(path string, flags transport.OpenFlags, mode uint32) (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

// Clone and Unwrap: a log sink has no exclusive resource to share out, so
// neither is supported (unlike a pipe or file, duplicating a log fd would
// silently imply a second independent sink that isn't there).
func (s *Sink) Clone() (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

func (s *Sink) Unwrap() (transport.Transport, status.Status) {
	return nil, status.ErrNotSupported
}

func (s *Sink) GetVmo() (*khandle.Handle, int64, int64, status.Status) {
	return nil, 0, 0, status.ErrNotSupported
}

func (s *Sink) Misc(op transport.MiscOp, arg int64, in []byte, maxReply int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (s *Sink) Ioctl(op int, in []byte, outLen int) ([]byte, status.Status) {
	return nil, status.ErrNotSupported
}

func (s *Sink) PosixIoctl(req int, arg uintptr) status.Status {
	return status.ErrNotSupported
}

func (s *Sink) WaitBegin(events transport.Events) (*khandle.Handle, khandle.Signals) {
	if events&transport.EventWritable == 0 {
		return s.handle, 0
	}
	return s.handle, khandle.SignalWritable
}

func (s *Sink) WaitEnd(pending khandle.Signals) transport.Events {
	if pending&khandle.SignalWritable != 0 {
		return transport.EventWritable
	}
	return 0
}

func (s *Sink) Close() status.Status {
	return nil
}

var _ transport.Transport = (*Sink)(nil)
