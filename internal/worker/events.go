package worker

import (
	"time"

	"github.com/Paintersrp/forq/internal/runtime"
)

// EventType captures high level lifecycle notifications emitted while the
// worker supervises job children.
type EventType string

const (
	EventTypeStarting      EventType = "starting"
	EventTypeStarted       EventType = "started"
	EventTypeSignal        EventType = "signal"
	EventTypeTermForwarded EventType = "term_forwarded"
	EventTypeQuitForwarded EventType = "quit_forwarded"
	EventTypeForcedKill    EventType = "forced_kill"
	EventTypeExited        EventType = "exited"
	EventTypeStopped       EventType = "stopped"
	EventTypeLog           EventType = "log"
	EventTypeError         EventType = "error"
)

// Event represents a single lifecycle or log notification.
type Event struct {
	Timestamp time.Time
	Job       string
	Type      EventType
	Message   string
	Level     string
	Source    string
	Err       error
	Reason    string
}

const (
	ReasonJobComplete  = "job_complete"
	ReasonJobFailed    = "job_failed"
	ReasonSignal       = "signal"
	ReasonGraceElapsed = "grace_elapsed"
	ReasonShutdown     = "shutdown"
	ReasonStartFailure = "start_failure"
)

func sendEvent(events chan<- Event, job string, t EventType, message string, reason string, err error) {
	if events == nil {
		return
	}
	events <- Event{
		Timestamp: time.Now(),
		Job:       job,
		Type:      t,
		Message:   message,
		Level:     "info",
		Source:    runtime.LogSourceSystem,
		Err:       err,
		Reason:    reason,
	}
}
