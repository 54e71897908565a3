package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/Paintersrp/forq/internal/runtime"
)

type runtimeImpl struct{}

// New constructs a runtime that executes jobs as local child processes.
func New() runtime.Runtime {
	return &runtimeImpl{}
}

func (r *runtimeImpl) Start(ctx context.Context, spec runtime.StartSpec) (runtime.Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("process runtime for job %s requires a command", spec.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Deliberately not CommandContext: termination is owned by the signal
	// relay, which escalates on its own schedule.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if spec.Workdir != "" {
		cmd.Dir = spec.Workdir
	}

	env := os.Environ()
	if spec.Env != nil {
		envOverrides := make([]string, 0, len(spec.Env))
		for k, v := range spec.Env {
			envOverrides = append(envOverrides, fmt.Sprintf("%s=%s", k, v))
		}
		env = append(env, envOverrides...)
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("job %s stdout: %w", spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("job %s stderr: %w", spec.Name, err)
	}

	// The child gets its own process group so forwarded signals reach the
	// whole job tree and never loop back to the worker. exec also resets
	// caught signal handlers to their defaults, which keeps forwarded
	// signals observable inside the child.
	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", spec.Name, err)
	}

	inst := &processHandle{
		name: spec.Name,
		cmd:  cmd,
		logs: make(chan runtime.LogEntry, 64),
		done: make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go inst.streamLogs(stdout, runtime.LogSourceStdout, &wg)
	go inst.streamLogs(stderr, runtime.LogSourceStderr, &wg)
	go func() {
		wg.Wait()
		close(inst.logs)
	}()

	go func() {
		err := cmd.Wait()
		inst.mu.Lock()
		inst.exitErr = err
		inst.mu.Unlock()
		close(inst.done)
	}()

	return inst, nil
}

type processHandle struct {
	name string
	cmd  *exec.Cmd
	logs chan runtime.LogEntry
	done chan struct{}

	mu      sync.Mutex
	exitErr error
}

func (p *processHandle) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *processHandle) Done() <-chan struct{} {
	return p.done
}

func (p *processHandle) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *processHandle) Logs() <-chan runtime.LogEntry {
	return p.logs
}

func (p *processHandle) streamLogs(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		entry := runtime.LogEntry{Message: line, Source: source}
		if source == runtime.LogSourceStderr {
			entry.Level = "warn"
		}
		p.logs <- entry
	}
}
