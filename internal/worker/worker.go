// Package worker runs configured jobs sequentially, each in a dedicated
// supervised child process. The worker owns at most one live child at a time;
// a signal-initiated termination ends the run without spawning a replacement.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Paintersrp/forq/internal/config"
	"github.com/Paintersrp/forq/internal/relay"
	"github.com/Paintersrp/forq/internal/runtime"
)

// ErrInterrupted is returned when a termination request ended the run before
// all requested jobs completed.
var ErrInterrupted = errors.New("worker interrupted")

// ChildCommand builds the argv used to launch the child for a job. The
// default re-execs the forq binary in executor mode.
type ChildCommand func(job string) ([]string, error)

// Worker supervises one job child at a time.
type Worker struct {
	cfg      *config.File
	registry runtime.Registry
	relayCfg relay.Config
	child    ChildCommand

	events chan Event
}

// Option customises worker construction.
type Option func(*Worker)

// WithChildCommand overrides child argv construction, primarily for tests.
func WithChildCommand(fn ChildCommand) Option {
	return func(w *Worker) {
		w.child = fn
	}
}

// WithEventBuffer sizes the event channel.
func WithEventBuffer(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.events = make(chan Event, n)
		}
	}
}

// New constructs a worker for the loaded configuration. cfgPath is the
// manifest path handed to child processes so they can locate their job spec.
func New(cfg *config.File, cfgPath string, registry runtime.Registry, opts ...Option) *Worker {
	w := &Worker{
		cfg:      cfg,
		registry: registry.Clone(),
		relayCfg: relay.Config{
			Mode:        cfg.Worker.TerminationMode,
			TermTimeout: cfg.Worker.TermTimeout.Duration,
		},
		child:  selfExecCommand(cfgPath),
		events: make(chan Event, 64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events exposes the worker's lifecycle and log event stream. The channel is
// closed when Run returns.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Run executes the named jobs in order (all configured jobs, sorted, when
// names is empty). External termination signals arrive on sigs. Run returns
// ErrInterrupted when a signal ended the run early, or an error describing
// failed jobs.
func (w *Worker) Run(ctx context.Context, names []string, sigs <-chan os.Signal) error {
	defer close(w.events)

	if len(names) == 0 {
		names = w.cfg.JobNames()
	}

	var failed []string
	for _, name := range names {
		// A request that arrived between children stops the run before
		// another child is spawned.
		select {
		case sig := <-sigs:
			sendEvent(w.events, "", EventTypeStopped, fmt.Sprintf("stopping before %s: received %s", name, sig), ReasonSignal, nil)
			return ErrInterrupted
		case <-ctx.Done():
			sendEvent(w.events, "", EventTypeStopped, "stopping: context cancelled", ReasonShutdown, nil)
			return ErrInterrupted
		default:
		}

		interrupted, err := w.runJob(ctx, name, sigs)
		if err != nil {
			failed = append(failed, name)
		}
		if interrupted {
			sendEvent(w.events, "", EventTypeStopped, "worker stopped", ReasonSignal, nil)
			return ErrInterrupted
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d job(s) failed: %v", len(failed), failed)
	}
	return nil
}

// runJob supervises a single child. The returned bool reports whether a
// termination request ended supervision, in which case no further children
// may be spawned.
func (w *Worker) runJob(ctx context.Context, name string, sigs <-chan os.Signal) (bool, error) {
	job, ok := w.cfg.Jobs[name]
	if !ok {
		err := fmt.Errorf("unknown job %q", name)
		sendEvent(w.events, name, EventTypeError, "job not found", ReasonStartFailure, err)
		return false, err
	}

	rt, ok := w.registry[job.Runtime]
	if !ok {
		err := fmt.Errorf("job %s: runtime %q not registered", name, job.Runtime)
		sendEvent(w.events, name, EventTypeError, "runtime unavailable", ReasonStartFailure, err)
		return false, err
	}

	argv, err := w.child(name)
	if err != nil {
		sendEvent(w.events, name, EventTypeError, "resolve child command", ReasonStartFailure, err)
		return false, err
	}

	sendEvent(w.events, name, EventTypeStarting, "starting job", "", nil)
	handle, err := rt.Start(ctx, runtime.StartSpec{Name: name, Command: argv})
	if err != nil {
		sendEvent(w.events, name, EventTypeError, "start failed", ReasonStartFailure, err)
		return false, err
	}
	sendEvent(w.events, name, EventTypeStarted, fmt.Sprintf("child pid %d", handle.PID()), "", nil)

	var logWG sync.WaitGroup
	logWG.Add(1)
	go w.streamLogs(name, handle.Logs(), &logWG)

	result, relayErr := relay.Supervise(ctx, handle, sigs, w.relayCfg, w.reporter(name))
	logWG.Wait()

	if relayErr != nil {
		sendEvent(w.events, name, EventTypeError, "supervision failed", "", relayErr)
		return true, relayErr
	}

	switch result.Outcome {
	case relay.OutcomeCompleted:
		if result.ExitErr != nil {
			sendEvent(w.events, name, EventTypeExited, "job failed", ReasonJobFailed, result.ExitErr)
			return false, result.ExitErr
		}
		sendEvent(w.events, name, EventTypeExited, "job complete", ReasonJobComplete, nil)
		return false, nil
	case relay.OutcomeKilled:
		reason := ReasonSignal
		if w.relayCfg.Mode == config.TerminationGraceful {
			reason = ReasonGraceElapsed
		}
		sendEvent(w.events, name, EventTypeExited, fmt.Sprintf("job killed (outcome=%s)", result.Outcome), reason, nil)
		return true, nil
	default:
		sendEvent(w.events, name, EventTypeExited, fmt.Sprintf("job terminated (outcome=%s)", result.Outcome), ReasonSignal, nil)
		return true, nil
	}
}

// reporter translates relay transitions into worker events.
func (w *Worker) reporter(name string) relay.Reporter {
	return func(t relay.Transition, sig os.Signal) {
		switch t {
		case relay.TransitionSignalReceived:
			sendEvent(w.events, name, EventTypeSignal, fmt.Sprintf("signal received: %v", sig), ReasonSignal, nil)
		case relay.TransitionTermForwarded:
			sendEvent(w.events, name, EventTypeTermForwarded, "term forwarded to child", ReasonSignal, nil)
		case relay.TransitionQuitForwarded:
			sendEvent(w.events, name, EventTypeQuitForwarded, "quit forwarded to child", ReasonSignal, nil)
		case relay.TransitionForcedKill:
			sendEvent(w.events, name, EventTypeForcedKill, "forced kill issued", ReasonGraceElapsed, nil)
		case relay.TransitionChildExited:
			sendEvent(w.events, name, EventTypeLog, "child exit observed", "", nil)
		}
	}
}

// streamLogs forwards child output into the event stream, dropping entries
// rather than blocking supervision when the consumer lags.
func (w *Worker) streamLogs(name string, logs <-chan runtime.LogEntry, wg *sync.WaitGroup) {
	defer wg.Done()
	if logs == nil {
		return
	}
	var dropped int
	for entry := range logs {
		if entry.Message == "" {
			continue
		}
		evt := w.normalizeLog(name, entry)
		select {
		case w.events <- evt:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		sendEvent(w.events, name, EventTypeLog, fmt.Sprintf("dropped=%d", dropped), "", nil)
	}
}

func (w *Worker) normalizeLog(name string, entry runtime.LogEntry) Event {
	level := entry.Level
	source := entry.Source
	if source == "" {
		source = runtime.LogSourceStdout
	}
	if level == "" {
		if source == runtime.LogSourceStderr {
			level = "warn"
		} else {
			level = "info"
		}
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Timestamp: ts,
		Job:       name,
		Type:      EventTypeLog,
		Message:   entry.Message,
		Level:     level,
		Source:    source,
	}
}

func selfExecCommand(cfgPath string) ChildCommand {
	return func(job string) ([]string, error) {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		return []string{exe, "exec", "--file", cfgPath, job}, nil
	}
}
