package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Paintersrp/forq/internal/runtime"
	"github.com/Paintersrp/forq/internal/worker"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Job       string    `json:"job"`
	Level     string    `json:"level"`
	Type      string    `json:"type"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewLogRecord converts a worker event into a structured log record. Secret
// key assignments in the message are redacted.
func NewLogRecord(event worker.Event) LogRecord {
	level := event.Level
	if level == "" {
		if inferred := inferLogLevel(event.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := event.Source
	if source == "" {
		source = runtime.LogSourceSystem
	}
	record := LogRecord{
		Timestamp: event.Timestamp,
		Job:       event.Job,
		Level:     level,
		Type:      string(event.Type),
		Message:   RedactSecrets(event.Message),
		Source:    source,
		Reason:    event.Reason,
	}
	if event.Err != nil {
		record.Error = RedactSecrets(event.Err.Error())
	}
	return record
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// Renderer writes worker events to an output stream, as JSON records for
// pipes and as aligned text when the stream is a terminal.
type Renderer struct {
	out    io.Writer
	stderr io.Writer
	enc    *json.Encoder
	human  bool
}

// NewRenderer builds a renderer for the provided streams. Human formatting is
// selected automatically when out is a terminal; forceJSON overrides it.
func NewRenderer(out, stderr io.Writer, forceJSON bool) *Renderer {
	r := &Renderer{out: out, stderr: stderr}
	if !forceJSON {
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			r.human = true
		}
	}
	if !r.human {
		r.enc = json.NewEncoder(out)
	}
	return r
}

// Render writes a single event.
func (r *Renderer) Render(event worker.Event) {
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if r.human {
		job := record.Job
		if job == "" {
			job = "-"
		}
		line := fmt.Sprintf("%s %-5s %-12s %s", record.Timestamp.Format("15:04:05.000"), record.Level, job, record.Message)
		if record.Error != "" {
			line += " error=" + record.Error
		}
		fmt.Fprintln(r.out, line)
		return
	}
	if err := r.enc.Encode(&record); err != nil {
		fmt.Fprintf(r.stderr, "error: encode log: %v\n", err)
	}
}
