// Package daemon detaches the process from its controlling terminal.
// Go cannot safely fork() a multi-threaded runtime the way
// original_source/src/daemonize.c forks twice, so Daemonize instead
// re-execs /proc/self/exe as a new session leader (Setsid, grounded on
// the exec.Cmd.SysProcAttr idiom used for detached children in
// vsrinivas-fuchsia's botanist/qemu launcher) carrying an internal
// marker environment variable. The parent writes the child's PID to
// pidPath and exits; the re-exec'd child, whose standard file
// descriptors the parent has already pointed at /dev/null, recognizes
// the marker, finishes detaching, and returns control to the caller.
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/kangtastic/peapod/internal/pidfile"
)

// markerEnv, when present in the environment, identifies a process as
// the already-detached daemon child rather than the original invocation
// that must still re-exec and exit.
const markerEnv = "_PEAPOD_DAEMONIZED"

// Daemonize detaches the calling process unless it is already the
// detached child (recognized via markerEnv), in which case it just
// finishes the detach steps daemon(7) expects of the final process
// (new session, cwd /, permissive umask) and returns nil immediately.
//
// On the first invocation, it re-execs itself with markerEnv set,
// writes the child's PID to pidPath, and calls os.Exit(0); it therefore
// never returns in that case.
func Daemonize(pidPath string) error {
	if os.Getenv(markerEnv) != "" {
		if _, err := syscall.Setsid(); err != nil && err != syscall.EPERM {
			return fmt.Errorf("setsid: %w", err)
		}
		if err := os.Chdir("/"); err != nil {
			return fmt.Errorf("chdir to /: %w", err)
		}
		syscall.Umask(0)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable path: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), markerEnv+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("re-exec as daemon: %w", err)
	}

	pf, err := pidfile.Open(pidPath)
	if err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("open PID file: %w", err)
	}
	defer pf.Close()

	if err := pf.Write(cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("write PID file: %w", err)
	}

	// Reap the child's process table entry once it exits; the daemon
	// itself is now independent of this parent.
	go cmd.Wait()

	os.Exit(0)
	return nil // unreachable
}
