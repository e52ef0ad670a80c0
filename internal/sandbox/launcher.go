package sandbox

import (
	"fmt"
	"os"
	"os/exec"
)

// Launcher builds the command that starts one isolated worker. The command
// must speak the worker protocol on stdin and stdout.
type Launcher interface {
	Command(runID string) (*exec.Cmd, error)
	// Kill releases anything the worker left outside its process group.
	// It is called after the group has been killed.
	Kill(runID string) error
}

// ProcessLauncher runs the worker as a child process, by default the
// current executable with the "worker" subcommand.
type ProcessLauncher struct {
	Path string
	Args []string
	// Env replaces the worker's environment. Secrets in the parent's
	// environment never reach the worker.
	Env []string
}

// NewProcessLauncher re-executes the running binary as the worker.
func NewProcessLauncher() (*ProcessLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating executable: %w", err)
	}
	return &ProcessLauncher{Path: exe, Args: []string{"worker"}}, nil
}

func (l *ProcessLauncher) Command(runID string) (*exec.Cmd, error) {
	if l.Path == "" {
		return nil, fmt.Errorf("process launcher has no path")
	}
	cmd := exec.Command(l.Path, l.Args...)
	cmd.Env = append([]string{"GOMAXPROCS=1", "DECIPHER_RUN_ID=" + runID}, l.Env...)
	cmd.Dir = os.TempDir()
	return cmd, nil
}

func (l *ProcessLauncher) Kill(string) error { return nil }
