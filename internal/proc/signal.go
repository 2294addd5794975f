package proc

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Alive reports whether pid refers to a live process. A permission error
// still counts as alive; only ESRCH means the process is gone.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// GroupAlive reports whether any member of the process group survives.
func GroupAlive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := unix.Kill(-pgid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// SignalGroup delivers sig to every member of the process group. A vanished
// group is not an error; supervision treats it as already exited.
func SignalGroup(pgid int, sig unix.Signal) error {
	if pgid <= 0 {
		return fmt.Errorf("signal group: invalid pgid %d", pgid)
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal group %d: %w", pgid, err)
	}
	return nil
}

// SignalPID delivers sig to a single process, tolerating its absence.
func SignalPID(pid int, sig unix.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("signal: invalid pid %d", pid)
	}
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}
