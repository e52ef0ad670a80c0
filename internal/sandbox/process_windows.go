//go:build windows

package sandbox

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// killProcessGroup terminates the worker and its children.
func killProcessGroup(pid int) error {
	cmd := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	output, err := cmd.CombinedOutput()
	if err != nil && !strings.Contains(string(output), "no process was found") {
		return fmt.Errorf("kill failed: %v, output: %s", err, output)
	}
	return nil
}
