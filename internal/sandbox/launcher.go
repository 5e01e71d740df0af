package sandbox

import (
	"fmt"
	"os/exec"
)

// Launcher rewrites a stdio server's command/args to run inside a
// hardened Docker container per a Policy. Grounded on
// internal/tools/sandbox's dockerExecutor, generalized from one-shot code
// execution to a long-lived server process.
type Launcher struct {
	dockerPath string
	image      string
}

// NewLauncher probes for a docker binary on PATH. If docker is not
// installed, Available reports false and callers must fall back to the
// documented unsandboxed downgrade.
func NewLauncher(image string) *Launcher {
	if image == "" {
		image = "alpine:3.20"
	}
	path, _ := exec.LookPath("docker")
	return &Launcher{dockerPath: path, image: image}
}

// Available reports whether a container runtime was found.
func (l *Launcher) Available() bool {
	return l.dockerPath != ""
}

// Wrap rewrites (command, args) into a `docker run` invocation that
// launches command/args inside a container hardened per policy, with the
// server's own env passed through via -e flags. The returned command/args
// are suitable to hand directly to an stdio transport (e.g.
// mcp-go's NewStdioMCPClient), which will exec docker in place of the
// original binary and communicate over the container's attached stdio.
func (l *Launcher) Wrap(command string, args []string, env map[string]string, policy Policy) (string, []string, error) {
	if !l.Available() {
		return "", nil, fmt.Errorf("sandbox: docker not found on PATH")
	}

	dockerArgs := []string{"run", "--rm", "-i"}
	if policy.DropAllCapabilities {
		dockerArgs = append(dockerArgs, "--cap-drop=ALL")
	}
	if policy.NoNewPrivileges {
		dockerArgs = append(dockerArgs, "--security-opt", "no-new-privileges")
	}
	if policy.ReadOnlyRootfs {
		dockerArgs = append(dockerArgs, "--read-only")
		tmpSize := policy.TmpSizeMB
		if tmpSize <= 0 {
			tmpSize = 64
		}
		dockerArgs = append(dockerArgs, "--tmpfs", fmt.Sprintf("/tmp:rw,size=%dm", tmpSize))
	}
	if !policy.NetworkEnabled {
		dockerArgs = append(dockerArgs, "--network", "none")
	}
	if policy.CPUQuota > 0 {
		dockerArgs = append(dockerArgs, "--cpus", fmt.Sprintf("%.2f", policy.CPUQuota))
	}
	if policy.MemoryLimitMB > 0 {
		dockerArgs = append(dockerArgs, "--memory", fmt.Sprintf("%dm", policy.MemoryLimitMB))
		dockerArgs = append(dockerArgs, "--memory-swap", fmt.Sprintf("%dm", policy.MemoryLimitMB))
	}
	if policy.PidsLimit > 0 {
		dockerArgs = append(dockerArgs, "--pids-limit", fmt.Sprintf("%d", policy.PidsLimit))
	}
	for k, v := range env {
		dockerArgs = append(dockerArgs, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	dockerArgs = append(dockerArgs, l.image, command)
	dockerArgs = append(dockerArgs, args...)

	return "docker", dockerArgs, nil
}
