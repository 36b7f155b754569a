// Package proxy implements the event loop (spec.md §4.6): a
// single-threaded, epoll-multiplexed wait over every interface socket,
// per-packet orchestration, and the Init/Run/Cooldown/Exit restart
// state machine.
package proxy

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
	"github.com/kangtastic/peapod/internal/logging"
	"github.com/kangtastic/peapod/internal/metrics"
	"github.com/kangtastic/peapod/internal/rawsock"
)

const cooldownDuration = 10 * time.Second

// stateGauge maps a state to the value metrics.Collector.SetState expects.
func stateGauge(st state) float64 {
	switch st {
	case stateInit:
		return metrics.StateInit
	case stateRun:
		return metrics.StateRunning
	case stateCooldown:
		return metrics.StateCooldown
	default:
		return metrics.StateExit
	}
}

// state is one of the four states from spec.md §4.6.
type state int

const (
	stateInit state = iota
	stateRun
	stateCooldown
	stateExit
)

// Loop is the packet-plane event loop. All of its methods run on a
// single goroutine; it is not safe for concurrent use.
type Loop struct {
	Table   *ifacetable.Table
	Oneshot bool
	Quiet   bool
	Metrics *metrics.Collector

	buf            *frame.Buffer
	epfd           int
	sig            *signalWatcher
	ignoreEPOLLERR bool
	shuttingDown   bool
	exitCode       int
}

// Run drives the state machine until it reaches Exit, then returns.
// The returned error, if non-nil, is the reason the loop could not
// continue (KindStartupFatal); a nil return after a clean SIGINT/
// SIGTERM shutdown is success.
func (l *Loop) Run() error {
	st := stateInit
	for {
		l.Metrics.SetState(stateGauge(st))
		switch st {
		case stateInit:
			if err := l.doInit(); err != nil {
				return err
			}
			st = stateRun
		case stateRun:
			next, err := l.doRun()
			if err != nil {
				var perr *Error
				if !errors.As(err, &perr) {
					return err
				}
				logging.L().Error().Err(perr.Err).Str("kind", perr.Kind.String()).Msg("proxy error")
				switch perr.Kind {
				case KindStartupFatal:
					return err
				case KindHardAbort:
					l.cleanup()
					os.Exit(1)
				}
				if l.Oneshot {
					logging.L().Notice().Msg("exiting on error, goodbye")
					l.cleanup()
					os.Exit(1)
				}
			}
			st = next
		case stateCooldown:
			l.doCooldown()
			st = stateInit
		case stateExit:
			l.cleanup()
			return nil
		}
	}
}

func (l *Loop) doInit() error {
	sig, err := newSignalWatcher()
	if err != nil {
		return wrap(KindStartupFatal, "create signal watcher: %w", err)
	}
	l.sig = sig

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return wrap(KindStartupFatal, "epoll_create1: %w", err)
	}
	l.epfd = epfd

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, l.sig.fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(-1), // distinguished from any real interface index
	}); err != nil {
		return wrap(KindStartupFatal, "register signalfd with epoll: %w", err)
	}

	ready := 0
	for _, iface := range l.Table.All() {
		if err := rawsock.Discover(l.Table, iface); err != nil {
			logging.L().Error().Err(err).Str("iface", iface.Name).Msg("cannot discover interface")
			continue
		}
		if iface.StaticMACPending {
			if err := rawsock.SetMAC(iface, iface.StaticMAC); err != nil {
				logging.L().Warn().Err(err).Str("iface", iface.Name).Msg("cannot set MAC, continuing; won't attempt that again")
			}
			iface.StaticMACPending = false
		}
		if err := rawsock.Open(iface); err != nil {
			logging.L().Error().Err(err).Str("iface", iface.Name).Msg("cannot open socket")
			continue
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, iface.FD, &unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(iface.Index),
		}); err != nil {
			logging.L().Error().Err(err).Str("iface", iface.Name).Msg("cannot register with epoll")
			_ = rawsock.Close(iface)
			continue
		}
		ready++
	}

	logging.L().Info().Int("ready", ready).Int("total", l.Table.Len()).Msg("interfaces are ready")

	maxMTU := 0
	for _, iface := range l.Table.All() {
		if iface.MTU > maxMTU {
			maxMTU = iface.MTU
		}
	}
	l.buf = frame.NewBuffer(maxMTU)

	logging.L().Notice().Msg("starting proxy")
	return nil
}

func (l *Loop) doRun() (state, error) {
	events := make([]unix.EpollEvent, 1)

	for {
		n, err := unix.EpollWait(l.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				if next, halt := l.checkSignals(); halt {
					return next, nil
				}
				continue
			}
			return stateCooldown, wrap(KindRuntimeTransient, "epoll_wait: %w", err)
		}
		if n == 0 {
			continue
		}

		ev := events[0]
		if ev.Fd == -1 {
			if next, halt := l.checkSignals(); halt {
				return next, nil
			}
			continue
		}

		iface := l.Table.ByIndex(int(ev.Fd))
		if iface == nil {
			continue
		}

		if ev.Events&unix.EPOLLIN == 0 {
			if l.ignoreEPOLLERR && ev.Events&unix.EPOLLERR != 0 {
				l.ignoreEPOLLERR = false
				return stateCooldown, wrap(KindRuntimeExpected, "expected socket error after MAC mutation, interface %q", iface.Name)
			}
			return stateCooldown, wrap(KindRuntimeTransient, "unexpected socket event (0x%x), interface %q", ev.Events, iface.Name)
		}

		if err := l.handlePacket(iface); err != nil {
			return stateCooldown, err
		}
	}
}

// checkSignals drains the signalfd and applies spec.md §4.6/§5's
// signal semantics. It returns the next state and true if the run
// state must be exited.
func (l *Loop) checkSignals() (state, bool) {
	c, err := l.sig.read()
	if err != nil {
		logging.L().Error().Err(err).Msg("cannot read signalfd")
		return stateCooldown, true
	}

	for i := 0; i < c.hup; i++ {
		logging.L().Notice().Msg("received SIGHUP")
	}
	for i := 0; i < c.usr1; i++ {
		logging.L().Notice().Msg("received SIGUSR1")
	}

	if c.int_ > 0 || c.term > 0 {
		if l.shuttingDown || c.int_+c.term > 1 {
			// A second SIGINT/SIGTERM arrived before the first was
			// acted upon: abort immediately, bypassing cleanup.
			logging.L().Warn().Msg("aborting on repeated signal")
			os.Exit(1)
		}
		l.shuttingDown = true
		which := "SIGINT"
		if c.term > 0 {
			which = "SIGTERM"
		}
		logging.L().Warn().Msgf("exiting on %s", which)
		return stateExit, true
	}

	return stateRun, false
}

func (l *Loop) doCooldown() {
	l.ignoreEPOLLERR = false
	l.closeEpoll()

	logging.L().Notice().Msg("restarting proxy in 10 seconds")
	time.Sleep(cooldownDuration)
}

func (l *Loop) closeEpoll() {
	if l.epfd != 0 {
		_ = unix.Close(l.epfd)
		l.epfd = 0
	}
	if l.sig != nil {
		_ = l.sig.close()
		l.sig = nil
	}
	for _, iface := range l.Table.All() {
		_ = rawsock.Close(iface)
	}
}

func (l *Loop) cleanup() {
	l.closeEpoll()
}

