package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/Paintersrp/forq/internal/config"
)

// runStep executes a single shell step with the job's environment and working
// directory. The step inherits the executor's output streams so the parent
// can observe progress line by line.
func runStep(ctx context.Context, e *Executor, step config.StepSpec) error {
	cmd := exec.CommandContext(ctx, shellPath, shellFlag, step.Run)
	if e.job.ResolvedWorkdir != "" {
		cmd.Dir = e.job.ResolvedWorkdir
	}

	env := os.Environ()
	for k, v := range e.job.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	return cmd.Run()
}
