package logmux

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/forq/internal/runtime"
	"github.com/Paintersrp/forq/internal/worker"
)

func drain(m *Mux) []worker.Event {
	var events []worker.Event
	for evt := range m.Output() {
		events = append(events, evt)
	}
	return events
}

func TestMuxForwardsAndNormalizes(t *testing.T) {
	m := New(16)
	in := make(chan worker.Event, 4)
	m.Add(in)

	in <- worker.Event{Job: "deploy", Type: worker.EventTypeLog, Message: "line", Source: runtime.LogSourceStderr}
	in <- worker.Event{Job: "deploy", Type: worker.EventTypeExited, Message: "job complete"}
	close(in)
	m.Close()

	events := drain(m)
	require.Len(t, events, 2)
	assert.Equal(t, "warn", events[0].Level, "stderr defaults to warn")
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, worker.EventTypeExited, events[1].Type)
}

func TestMuxMergesMultipleSources(t *testing.T) {
	m := New(16)
	a := make(chan worker.Event, 2)
	b := make(chan worker.Event, 2)
	m.Add(a)
	m.Add(b)

	a <- worker.Event{Job: "a", Type: worker.EventTypeLog, Message: "from-a"}
	b <- worker.Event{Job: "b", Type: worker.EventTypeLog, Message: "from-b"}
	close(a)
	close(b)
	m.Close()

	events := drain(m)
	require.Len(t, events, 2)
	jobs := map[string]bool{}
	for _, evt := range events {
		jobs[evt.Job] = true
	}
	assert.True(t, jobs["a"] && jobs["b"])
}

func TestMuxSurfacesDrops(t *testing.T) {
	m := New(1)
	in := make(chan worker.Event, 8)
	m.Add(in)

	for i := 0; i < 6; i++ {
		in <- worker.Event{Job: "noisy", Type: worker.EventTypeLog, Message: "spam"}
	}
	close(in)

	// Give the forwarding goroutine time to overflow the single-slot
	// output buffer before draining.
	time.Sleep(50 * time.Millisecond)

	collected := make(chan []worker.Event, 1)
	go func() { collected <- drain(m) }()
	m.Close()

	events := <-collected
	var droppedSeen bool
	for _, evt := range events {
		if strings.HasPrefix(evt.Message, "dropped=") {
			droppedSeen = true
		}
	}
	assert.True(t, droppedSeen, "expected a synthesized drop event, got %v", events)
}
