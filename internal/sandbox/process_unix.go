//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup starts the worker in its own process group so that
// anything it spawns dies with it.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the worker's whole process group.
func killProcessGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
