// Package pidfile manages the daemon's PID file: locking it against
// concurrent writers, checking whether a previously recorded PID is
// still alive, and writing/reading it back atomically. Grounded on
// original_source/src/daemonize.c's check_pidfile/write_pidfile, using
// unix.Flock in place of the original's flock(2) call and unix.Kill
// with signal 0 in place of kill(pid, 0) for the liveness probe.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrProcessAlive is returned by Open when the PID file already
// contains the PID of a process that is still running.
type ErrProcessAlive struct{ PID int }

func (e *ErrProcessAlive) Error() string {
	return fmt.Sprintf("found existing PID %d in PID file", e.PID)
}

// Check reads path and reports the PID recorded there if that process
// is still alive, matching the original's check_pidfile. It takes no
// lock; Open performs the same liveness check on the locked file.
func Check(path string) (pid int, alive bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
	if perr != nil || pid <= 0 {
		return 0, false, nil
	}

	return pid, isAlive(pid), nil
}

func isAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// File is an open, locked PID file.
type File struct {
	f    *os.File
	path string
}

// Open creates (or opens) path and takes an exclusive, non-blocking
// advisory lock on it, refusing to proceed if another live process
// already owns the PID recorded inside.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_SYNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}

	pf := &File{f: f, path: path}

	existing, err := pf.read()
	if err != nil {
		pf.Close()
		return nil, err
	}
	if existing != 0 && isAlive(existing) {
		pf.Close()
		return nil, &ErrProcessAlive{PID: existing}
	}

	return pf, nil
}

func (pf *File) read() (int, error) {
	buf := make([]byte, 16)
	n, err := pf.f.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return 0, nil
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	return pid, nil
}

// Write records pid in the PID file, rewinding, truncating, writing,
// and fsyncing it, then reads it back to verify the write landed.
func (pf *File) Write(pid int) error {
	if _, err := pf.f.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind PID file: %w", err)
	}
	if err := pf.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate PID file: %w", err)
	}

	line := fmt.Sprintf("%d\n", pid)
	if _, err := pf.f.WriteString(line); err != nil {
		return fmt.Errorf("write PID: %w", err)
	}
	if err := pf.f.Sync(); err != nil {
		return fmt.Errorf("sync PID file: %w", err)
	}

	written, err := pf.read()
	if err != nil {
		return err
	}
	if written != pid {
		return fmt.Errorf("PID file verification failed: wrote %d, read back %d", pid, written)
	}
	return nil
}

// Remove deletes the PID file. Callers should call this during clean
// shutdown, after Close.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close releases the lock and closes the underlying file. It does not
// remove the file; call Remove separately once the daemon is done with
// the path entirely.
func (pf *File) Close() error {
	return pf.f.Close()
}

// Path returns the path the File was opened from.
func (pf *File) Path() string { return pf.path }
