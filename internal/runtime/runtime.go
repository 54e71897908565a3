package runtime

import (
	"context"
	"os"
	"time"
)

// Log sources attached to entries emitted by runtime handles.
const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "system"
)

// LogEntry is a single line captured from a child process.
type LogEntry struct {
	Timestamp time.Time
	Message   string
	Source    string
	Level     string
}

// StartSpec describes the child process a runtime should launch.
type StartSpec struct {
	Name    string
	Command []string
	Env     map[string]string
	Workdir string
}

// Handle represents a single live child owned by the worker. The worker is
// the sole owner of the decision to terminate it.
type Handle interface {
	// PID reports the operating-system process identifier of the child.
	PID() int

	// Done is closed once the child's exit has been observed.
	Done() <-chan struct{}

	// ExitErr reports the child's exit error. Only meaningful after Done
	// is closed.
	ExitErr() error

	// Signal delivers the given signal to the child. A child that has
	// already exited is not an error.
	Signal(sig os.Signal) error

	// Kill forcibly terminates the child. Idempotent: a child that has
	// already exited is treated as success.
	Kill() error

	// Logs returns a channel of log lines from the child. The channel is
	// closed once the child's output streams are drained.
	Logs() <-chan LogEntry
}

// Runtime describes a backend capable of launching job children.
type Runtime interface {
	// Start launches the described child and returns a handle to it.
	// Implementations should respect context cancellation during startup
	// and surface failures via returned errors.
	Start(ctx context.Context, spec StartSpec) (Handle, error)
}

// Registry maps runtime identifiers to their concrete implementations.
type Registry map[string]Runtime

// Clone returns a shallow copy of the registry, allowing callers to avoid
// accidental mutation of shared maps.
func (r Registry) Clone() Registry {
	dup := make(Registry, len(r))
	for k, v := range r {
		dup[k] = v
	}
	return dup
}
