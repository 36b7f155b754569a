package proxy

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
	"github.com/kangtastic/peapod/internal/metrics"
)

func TestStateGauge(t *testing.T) {
	assert.Equal(t, float64(metrics.StateInit), stateGauge(stateInit))
	assert.Equal(t, float64(metrics.StateRunning), stateGauge(stateRun))
	assert.Equal(t, float64(metrics.StateCooldown), stateGauge(stateCooldown))
	assert.Equal(t, float64(metrics.StateExit), stateGauge(stateExit))
}

func TestLearnMACOneShot(t *testing.T) {
	tbl := ifacetable.NewTable()
	a := ifacetable.NewInterface("peapod-test-a", 10)
	b := ifacetable.NewInterface("peapod-test-b", 11)
	b.LearnMACFrom = a.Index
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	l := &Loop{Table: tbl}

	// b's interface doesn't exist, so rawsock.SetMAC inside learnMAC
	// will fail; the one-shot flag must still clear regardless, per
	// spec.md's "one-shot" rule.
	l.learnMAC(a, [frame.MACAddrLen]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})

	assert.Equal(t, -1, b.LearnMACFrom)
}

func TestLearnMACIgnoresUnrelatedInterfaces(t *testing.T) {
	tbl := ifacetable.NewTable()
	a := ifacetable.NewInterface("peapod-test-a", 10)
	b := ifacetable.NewInterface("peapod-test-b", 11)
	c := ifacetable.NewInterface("peapod-test-c", 12)
	// c learns from b, not from a: learnMAC(a, ...) must not touch it.
	c.LearnMACFrom = b.Index
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))
	require.NoError(t, tbl.Add(c))

	l := &Loop{Table: tbl}
	l.learnMAC(a, [frame.MACAddrLen]byte{1, 2, 3, 4, 5, 6})

	assert.Equal(t, b.Index, c.LearnMACFrom)
}

func TestLearnMACSurvivesReindex(t *testing.T) {
	// Regression test for the index-staleness bug: set-mac-from is
	// resolved at parse time against the synthetic per-file index, but
	// rawsock.Discover later reindexes interfaces to their real kernel
	// ifindex. learnMAC's comparison must still match afterward.
	tbl := ifacetable.NewTable()
	a := ifacetable.NewInterface("peapod-test-a", 1)
	b := ifacetable.NewInterface("peapod-test-b", 2)
	b.LearnMACFrom = a.Index // resolved against a's synthetic index 1
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	require.NoError(t, tbl.Reindex(a, 42)) // simulates rawsock.Discover

	l := &Loop{Table: tbl}
	l.learnMAC(a, [frame.MACAddrLen]byte{1, 2, 3, 4, 5, 6})

	assert.Equal(t, -1, b.LearnMACFrom)
}

func TestCheckSignalsNoticeOnHupAndUsr1(t *testing.T) {
	sig, err := newSignalWatcher()
	require.NoError(t, err)
	defer sig.close()

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGHUP))
	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGUSR1))
	waitForSignalfd(t, sig.fd)

	l := &Loop{sig: sig}
	st, halt := l.checkSignals()

	assert.Equal(t, stateRun, st)
	assert.False(t, halt)
	assert.False(t, l.shuttingDown)
}

func TestCheckSignalsExitsOnSigint(t *testing.T) {
	sig, err := newSignalWatcher()
	require.NoError(t, err)
	defer sig.close()

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGINT))
	waitForSignalfd(t, sig.fd)

	l := &Loop{sig: sig}
	st, halt := l.checkSignals()

	assert.Equal(t, stateExit, st)
	assert.True(t, halt)
	assert.True(t, l.shuttingDown)
}

func TestDoInitSucceedsWithNoReadyInterfaces(t *testing.T) {
	tbl := ifacetable.NewTable()
	require.NoError(t, tbl.Add(ifacetable.NewInterface("peapod-test-nonexistent0", 1)))
	require.NoError(t, tbl.Add(ifacetable.NewInterface("peapod-test-nonexistent1", 2)))
	tbl.All()[0].MTU = 1500
	tbl.All()[1].MTU = 1500

	l := &Loop{Table: tbl}
	defer l.cleanup()

	// Neither interface exists, so rawsock.Discover/Open fail for both
	// and are skipped, but doInit itself must still succeed: it owns
	// only the epoll/signalfd/buffer setup, not interface readiness.
	require.NoError(t, l.doInit())
	assert.NotZero(t, l.epfd)
	assert.NotNil(t, l.sig)
	assert.NotNil(t, l.buf)
	assert.Equal(t, 1500, l.buf.MTU())
}

func TestDoRunReturnsExitOnSigint(t *testing.T) {
	tbl := ifacetable.NewTable()
	require.NoError(t, tbl.Add(ifacetable.NewInterface("peapod-test-nonexistent0", 1)))
	require.NoError(t, tbl.Add(ifacetable.NewInterface("peapod-test-nonexistent1", 2)))

	l := &Loop{Table: tbl}
	require.NoError(t, l.doInit())
	defer l.cleanup()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = unix.Kill(os.Getpid(), unix.SIGINT)
	}()

	st, err := l.doRun()
	assert.NoError(t, err)
	assert.Equal(t, stateExit, st)
}

// waitForSignalfd polls briefly until fd (a nonblocking signalfd) has
// data pending, so the subsequent read in checkSignals isn't racing
// signal delivery.
func waitForSignalfd(t *testing.T, fd int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var pfd [1]unix.PollFd
		pfd[0].Fd = int32(fd)
		pfd[0].Events = unix.POLLIN
		n, err := unix.Poll(pfd[:], 50)
		if err == nil && n > 0 {
			return
		}
	}
	t.Fatal("timed out waiting for signalfd to become readable")
}
