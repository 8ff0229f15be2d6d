package shmseg

import "unsafe"

// WakeEmptyAddr returns a pointer into the segment header used as the
// futex/condition address for the `empty` token queue's blocking wait.
func WakeEmptyAddr(mem []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(&mem[wakeEmptyOffset]))
}

// WakeFilledAddr is WakeEmptyAddr's counterpart for the `filled` queue.
func WakeFilledAddr(mem []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(&mem[wakeFilledOffset]))
}
