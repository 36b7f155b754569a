package proxy

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

var sizeofSignalfdSiginfo = int(unsafe.Sizeof(unix.SignalfdSiginfo{}))

// signalWatcher blocks SIGHUP/SIGINT/SIGUSR1/SIGTERM process-wide and
// exposes them as a signalfd file descriptor registrable with epoll.
// This is the Go-native, race-free substitute for the original tool's
// epoll_pwait(..., &sigempty) trick (see SPEC_FULL.md §4.6): signals
// are only observable when the signalfd itself becomes readable inside
// the same wait loop used for packet sockets.
type signalWatcher struct {
	fd int
}

func newSignalWatcher() (*signalWatcher, error) {
	var mask unix.Sigset_t
	for _, sig := range []unix.Signal{unix.SIGHUP, unix.SIGINT, unix.SIGUSR1, unix.SIGTERM} {
		addSignal(&mask, sig)
	}

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, nil); err != nil {
		return nil, err
	}

	fd, err := unix.Signalfd(-1, &mask, unix.SFD_CLOEXEC|unix.SFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &signalWatcher{fd: fd}, nil
}

func (w *signalWatcher) close() error { return unix.Close(w.fd) }

// counts is the tally of each watched signal received since the last
// call to read, matching the original tool's volatile sig_atomic_t
// counters.
type counts struct {
	hup, int_, usr1, term int
}

// read drains every pending siginfo record from the signalfd and
// tallies them.
func (w *signalWatcher) read() (counts, error) {
	var c counts
	buf := make([]byte, sizeofSignalfdSiginfo*8)
	for {
		n, err := unix.Read(w.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				return c, nil
			}
			return c, err
		}
		for off := 0; off+sizeofSignalfdSiginfo <= n; off += sizeofSignalfdSiginfo {
			info := (*unix.SignalfdSiginfo)(ptr(&buf[off]))
			switch unix.Signal(info.Signo) {
			case unix.SIGHUP:
				c.hup++
			case unix.SIGINT:
				c.int_++
			case unix.SIGUSR1:
				c.usr1++
			case unix.SIGTERM:
				c.term++
			}
		}
		if n < len(buf) {
			return c, nil
		}
	}
}
