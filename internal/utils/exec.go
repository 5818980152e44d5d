package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// PrepareCommandWithPath returns a shell command with a sane PATH set, as
// early-boot environments tend to ship an empty one.
func PrepareCommandWithPath(cmd string) *exec.Cmd {
	c := exec.Command("/bin/sh", "-c", cmd)
	c.Env = append(os.Environ(), "PATH=/usr/bin:/usr/sbin:/bin:/sbin")
	return c
}

// CommandWithPath runs a shell command and returns its combined output.
func CommandWithPath(cmd string) (string, error) {
	c := PrepareCommandWithPath(cmd)
	out, err := c.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("failed to run %s: %w", cmd, err)
	}
	return string(out), nil
}

// ExitStatus digs the exit code out of an exec error. Returns 1 when the
// command never ran.
func ExitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// RunningKernelVersion returns the release of the currently booted kernel,
// the resolution of the "current" version sentinel.
func RunningKernelVersion() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}
