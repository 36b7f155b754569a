package daemon

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDaemonizeAlreadyMarkedFinishesDetach exercises the branch taken
// by the re-exec'd child: it must not re-exec again, and must leave the
// process in / with umask 0. The re-exec branch itself needs a real
// subprocess to observe (it calls os.Exit), so it isn't exercised here.
func TestDaemonizeAlreadyMarkedFinishesDetach(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(cwd)

	t.Setenv(markerEnv, "1")

	require.NoError(t, Daemonize("/nonexistent/should/not/be/touched.pid"))

	got, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/", got)
}
