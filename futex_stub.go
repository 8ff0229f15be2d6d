//go:build !linux || !(amd64 || arm64)

package ringbuffer

import "errors"

// errFutexUnsupported is returned on platforms without a Linux futex; callers
// (TokenQueue.park/broadcast) fall back to the in-process channel wake, which
// is still correct within a single process.
var errFutexUnsupported = errors.New("ringbuffer: futex not supported on this platform")

func futexWait(addr *uint32, val uint32) error {
	return errFutexUnsupported
}

func futexWake(addr *uint32, n int) (int, error) {
	return 0, errFutexUnsupported
}
