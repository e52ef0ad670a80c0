package sandbox

import (
	"fmt"
	"os/exec"
)

// DockerLauncher runs each worker in a throwaway container. The image must
// contain the decipher binary.
type DockerLauncher struct {
	Image   string
	Binary  string // path of decipher inside the image
	Memory  int64  // bytes
	Network bool   // whether network access is allowed
	Docker  string // docker CLI, defaults to "docker"
}

// NewDockerLauncher creates a launcher for image with the policy's memory
// limit.
func NewDockerLauncher(image string, policy Policy) *DockerLauncher {
	return &DockerLauncher{Image: image, Binary: "decipher", Memory: policy.MaxMemory}
}

func (d *DockerLauncher) containerName(runID string) string {
	return "decipher-" + runID
}

func (d *DockerLauncher) docker() string {
	if d.Docker == "" {
		return "docker"
	}
	return d.Docker
}

func (d *DockerLauncher) Command(runID string) (*exec.Cmd, error) {
	if d.Image == "" {
		return nil, fmt.Errorf("docker launcher has no image")
	}
	args := []string{
		"run", "--rm", "-i",
		"--name", d.containerName(runID),
		"--read-only",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--pids-limit", "64",
	}
	if d.Memory > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", d.Memory>>20))
	}
	if !d.Network {
		args = append(args, "--network=none")
	}
	args = append(args, d.Image, d.Binary, "worker")
	return exec.Command(d.docker(), args...), nil
}

// Kill removes the container. Killing the docker CLI alone leaves it
// running.
func (d *DockerLauncher) Kill(runID string) error {
	out, err := exec.Command(d.docker(), "kill", d.containerName(runID)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker kill: %w: %s", err, out)
	}
	return nil
}

