// Package executor implements the child-side job executor. It runs a job's
// steps in order and converts an asynchronous term request into a synchronous
// control transfer at the next step boundary, cancelling the in-flight step.
//
// Quit is deliberately never trapped: the default disposition terminates the
// process immediately, with no cleanup opportunity.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/Paintersrp/forq/internal/config"
)

// ErrTermRequested is returned when a forwarded term request interrupted the
// job. Cleanup steps, if any, have already run by the time it is returned.
var ErrTermRequested = errors.New("term requested")

// State is the executor's lifecycle phase.
type State string

const (
	StateRunning  State = "running"
	StateCleaning State = "cleaning"
	StateExited   State = "exited"
)

// Executor runs one job to completion or to a bounded-cleanup termination.
type Executor struct {
	name string
	job  *config.JobSpec

	stdout io.Writer
	stderr io.Writer

	notify func(chan<- os.Signal) func()

	state atomic.Value
	term  atomic.Bool
}

// Option customises executor construction.
type Option func(*Executor)

// WithOutput redirects step output, primarily for tests.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithTermSource replaces the term-signal subscription, allowing tests to
// inject termination requests without delivering real signals.
func WithTermSource(src <-chan struct{}) Option {
	return func(e *Executor) {
		e.notify = func(ch chan<- os.Signal) func() {
			done := make(chan struct{})
			go func() {
				select {
				case <-src:
					ch <- syscall.SIGTERM
				case <-done:
				}
			}()
			return func() { close(done) }
		}
	}
}

// New constructs an executor for the named job.
func New(name string, job *config.JobSpec, opts ...Option) *Executor {
	e := &Executor{
		name:   name,
		job:    job,
		stdout: os.Stdout,
		stderr: os.Stderr,
		notify: func(ch chan<- os.Signal) func() {
			signal.Notify(ch, syscall.SIGTERM)
			return func() { signal.Stop(ch) }
		},
	}
	e.state.Store(StateRunning)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the executor's current phase.
func (e *Executor) State() State {
	return e.state.Load().(State)
}

// TermRequested reports whether a term request has been observed.
func (e *Executor) TermRequested() bool {
	return e.term.Load()
}

// Run executes the job's steps. On a term request it cancels the in-flight
// step, transitions to cleaning, runs the cleanup steps and returns
// ErrTermRequested. Cleanup is best-effort: the parent's grace deadline can
// forcibly terminate the process mid-cleanup.
func (e *Executor) Run(ctx context.Context) error {
	termCh := make(chan os.Signal, 1)
	stop := e.notify(termCh)
	defer stop()

	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-termCh:
			e.term.Store(true)
			cancel()
		case <-watchDone:
		case <-stepCtx.Done():
		}
	}()

	for i, step := range e.job.Steps {
		if e.term.Load() {
			break
		}
		if err := runStep(stepCtx, e, step); err != nil {
			if e.term.Load() {
				break
			}
			e.state.Store(StateExited)
			return fmt.Errorf("job %s: step %s: %w", e.name, stepLabel(step, i), err)
		}
	}

	if !e.term.Load() {
		e.state.Store(StateExited)
		return nil
	}

	e.state.Store(StateCleaning)
	// Cleanup runs detached from the cancelled step context; its only bound
	// is the parent's grace deadline.
	for i, step := range e.job.Cleanup {
		if err := runStep(context.Background(), e, step); err != nil {
			e.state.Store(StateExited)
			return fmt.Errorf("job %s: cleanup %s: %w", e.name, stepLabel(step, i), err)
		}
	}
	e.state.Store(StateExited)
	return ErrTermRequested
}

func stepLabel(step config.StepSpec, index int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("#%d", index)
}
