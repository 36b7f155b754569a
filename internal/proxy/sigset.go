package proxy

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// addSignal sets sig's bit in mask, matching the layout of Linux's
// sigset_t (an array of unsigned long words).
func addSignal(mask *unix.Sigset_t, sig unix.Signal) {
	bit := uint(sig) - 1
	mask.Val[bit/64] |= 1 << (bit % 64)
}

// ptr reinterprets a byte slice's backing array as a pointer to T,
// used to overlay unix.SignalfdSiginfo onto a raw signalfd read buffer.
func ptr(b *byte) unsafe.Pointer { return unsafe.Pointer(b) }
