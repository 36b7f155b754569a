package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peapod.pid")
	pid, alive, err := Check(path)
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, alive)
}

func TestCheckStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peapod.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	pid, alive, err := Check(path)
	require.NoError(t, err)
	assert.Equal(t, 999999999, pid)
	assert.False(t, alive)
}

func TestOpenWriteReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peapod.pid")

	pf, err := Open(path)
	require.NoError(t, err)
	defer pf.Close()

	require.NoError(t, pf.Write(os.Getpid()))

	pid, alive, err := Check(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, alive)
}

func TestOpenRefusesLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peapod.pid")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	var alive *ErrProcessAlive
	assert.ErrorAs(t, err, &alive)
	assert.Equal(t, os.Getpid(), alive.PID)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peapod.pid")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-absent file is not an error.
	require.NoError(t, Remove(path))
}
