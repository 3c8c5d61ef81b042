package posix

import "golang.org/x/sys/unix"

// errnoErr turns a zero errno into a nil error, the same convention the
// standard library's internal syscall wrappers use so callers can write
// `if err != nil`.
func errnoErr(e unix.Errno) error {
	if e == 0 {
		return nil
	}
	return e
}
