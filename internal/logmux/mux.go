// Package logmux fans in log events from supervised jobs and delivers them
// via a bounded channel, surfacing dropped entries instead of blocking the
// producers.
package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/forq/internal/runtime"
	"github.com/Paintersrp/forq/internal/worker"
)

// Mux fans in log events from multiple sources. When downstream consumers
// cannot keep up and the output buffer would overflow, the mux drops log
// records and emits a synthesized warning event to surface the number of
// discarded entries.
type Mux struct {
	out chan worker.Event

	mu     sync.Mutex
	drops  map[string]int
	inputs sync.WaitGroup
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan worker.Event, size),
		drops: make(map[string]int),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan worker.Event {
	return m.out
}

// Add registers a new source channel. The mux consumes events until the
// source channel is closed. Non-log events pass through unconditionally so
// lifecycle transitions are never dropped.
func (m *Mux) Add(source <-chan worker.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			if evt.Type != worker.EventTypeLog {
				m.out <- normalize(evt)
				continue
			}
			m.deliver(normalize(evt))
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop metadata,
// and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt worker.Event) {
	if !m.flushPending(evt.Job) {
		m.recordDrop(evt.Job, 1)
		return
	}
	if m.trySend(evt) {
		return
	}
	m.recordDrop(evt.Job, 1)
}

func (m *Mux) flushPending(job string) bool {
	for {
		count := m.takeDrops(job)
		if count == 0 {
			return true
		}
		if m.trySend(synthesizeDropEvent(job, count)) {
			continue
		}
		m.recordDrop(job, count)
		return false
	}
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[string]int)
	m.mu.Unlock()

	for job, count := range pending {
		if count > 0 {
			m.out <- synthesizeDropEvent(job, count)
		}
	}
}

func (m *Mux) takeDrops(job string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.drops[job]
	if count != 0 {
		delete(m.drops, job)
	}
	return count
}

func (m *Mux) recordDrop(job string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[job] += count
}

func (m *Mux) trySend(evt worker.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func synthesizeDropEvent(job string, count int) worker.Event {
	return worker.Event{
		Timestamp: time.Now(),
		Job:       job,
		Type:      worker.EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    runtime.LogSourceSystem,
	}
}

func normalize(evt worker.Event) worker.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		evt.Source = runtime.LogSourceStdout
	}
	if evt.Level == "" {
		if evt.Source == runtime.LogSourceStderr {
			evt.Level = "warn"
		} else {
			evt.Level = "info"
		}
	}
	return evt
}
