// Package exec runs the external tools used by post-apply validation.
package exec

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// CommandRunner starts external commands. Tests substitute fakes.
type CommandRunner interface {
	// Run executes name in workDir and returns its combined output.
	Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error)

	// LookPath reports where an executable is installed. The error wraps
	// os/exec.ErrNotFound when it is not.
	LookPath(name string) (string, error)
}

// waitDelay bounds how long a canceled command may hold its output pipes.
const waitDelay = 5 * time.Second

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct {
	env []string
}

// NewRunner returns a runner that adds env ("KEY=value") to the inherited
// environment of every command.
func NewRunner(env ...string) *ExecRunner {
	return &ExecRunner{env: env}
}

func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir
	cmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	return cmd.CombinedOutput()
}

func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

var _ CommandRunner = (*ExecRunner)(nil)
