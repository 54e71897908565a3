package relay

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/forq/internal/config"
	"github.com/Paintersrp/forq/internal/runtime"
)

type fakeHandle struct {
	done     chan struct{}
	exitOnce sync.Once

	mu      sync.Mutex
	exitErr error
	signals []os.Signal
	kills   int

	onTerm func(h *fakeHandle)
	onQuit func(h *fakeHandle)
	onKill func(h *fakeHandle)
}

func newFakeHandle() *fakeHandle {
	h := &fakeHandle{done: make(chan struct{})}
	h.onKill = func(h *fakeHandle) { h.exit(errors.New("signal: killed")) }
	return h
}

func (h *fakeHandle) exit(err error) {
	h.exitOnce.Do(func() {
		h.mu.Lock()
		h.exitErr = err
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *fakeHandle) PID() int              { return 4242 }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

func (h *fakeHandle) Logs() <-chan runtime.LogEntry { return nil }

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	term := h.onTerm
	quit := h.onQuit
	h.mu.Unlock()
	switch sig {
	case syscall.SIGTERM:
		if term != nil {
			term(h)
		}
	case syscall.SIGQUIT:
		if quit != nil {
			quit(h)
		}
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	h.kills++
	kill := h.onKill
	h.mu.Unlock()
	if kill != nil {
		kill(h)
	}
	return nil
}

func (h *fakeHandle) sentSignals() []os.Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]os.Signal(nil), h.signals...)
}

func (h *fakeHandle) killCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kills
}

func supervise(t *testing.T, h *fakeHandle, sigs <-chan os.Signal, cfg Config) (Result, []Transition) {
	t.Helper()
	var mu sync.Mutex
	var transitions []Transition
	report := func(tr Transition, _ os.Signal) {
		mu.Lock()
		transitions = append(transitions, tr)
		mu.Unlock()
	}
	res, err := Supervise(context.Background(), h, sigs, cfg, report)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	return res, append([]Transition(nil), transitions...)
}

func TestNaturalExit(t *testing.T) {
	h := newFakeHandle()
	go h.exit(nil)

	res, transitions := supervise(t, h, make(chan os.Signal), Config{Mode: config.TerminationImmediate})
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.NoError(t, res.ExitErr)
	assert.Zero(t, h.killCount())
	assert.Equal(t, []Transition{TransitionChildExited}, transitions)
}

func TestImmediateModeKillsWithoutGrace(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGTERM, syscall.SIGINT} {
		t.Run(sig.String(), func(t *testing.T) {
			h := newFakeHandle()
			sigs := make(chan os.Signal, 1)
			sigs <- sig

			res, transitions := supervise(t, h, sigs, Config{Mode: config.TerminationImmediate, TermTimeout: config.DefaultTermTimeout})
			assert.Equal(t, OutcomeKilled, res.Outcome)
			assert.Equal(t, 1, h.killCount())
			assert.Empty(t, h.sentSignals(), "immediate mode must not forward term")
			assert.Zero(t, res.GraceElapsed)
			assert.Equal(t, []Transition{TransitionSignalReceived, TransitionForcedKill, TransitionChildExited}, transitions)
		})
	}
}

func TestGracefulModeChildExitsWithinGrace(t *testing.T) {
	h := newFakeHandle()
	h.onTerm = func(h *fakeHandle) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			h.exit(nil)
		}()
	}
	sigs := make(chan os.Signal, 1)
	sigs <- syscall.SIGTERM

	res, transitions := supervise(t, h, sigs, Config{Mode: config.TerminationGraceful, TermTimeout: time.Second})
	assert.Equal(t, OutcomeTermExited, res.Outcome)
	assert.Zero(t, h.killCount(), "no forced kill when the child honours term")
	assert.Equal(t, []os.Signal{syscall.SIGTERM}, h.sentSignals())
	assert.Less(t, res.GraceElapsed, time.Second)
	assert.Equal(t, []Transition{TransitionSignalReceived, TransitionTermForwarded, TransitionChildExited}, transitions)

	// Forcing a kill after the child already exited must not error.
	assert.NoError(t, h.Kill())
}

func TestGracefulModeEscalatesAfterDeadline(t *testing.T) {
	h := newFakeHandle()
	// Child ignores term entirely; only the forced kill ends it.
	sigs := make(chan os.Signal, 1)
	sigs <- syscall.SIGTERM

	grace := 50 * time.Millisecond
	res, transitions := supervise(t, h, sigs, Config{Mode: config.TerminationGraceful, TermTimeout: grace})
	assert.Equal(t, OutcomeKilled, res.Outcome)
	assert.Equal(t, 1, h.killCount(), "exactly one forced kill")
	assert.GreaterOrEqual(t, res.GraceElapsed, grace, "forced kill must not fire before the deadline")
	assert.Equal(t, []Transition{TransitionSignalReceived, TransitionTermForwarded, TransitionForcedKill, TransitionChildExited}, transitions)
}

func TestQuitBlocksUntilExitWithoutGrace(t *testing.T) {
	for _, mode := range []config.TerminationMode{config.TerminationImmediate, config.TerminationGraceful} {
		t.Run(string(mode), func(t *testing.T) {
			h := newFakeHandle()
			h.onQuit = func(h *fakeHandle) { h.exit(errors.New("signal: quit")) }
			sigs := make(chan os.Signal, 1)
			sigs <- syscall.SIGQUIT

			res, transitions := supervise(t, h, sigs, Config{Mode: mode, TermTimeout: time.Hour})
			assert.Equal(t, OutcomeQuit, res.Outcome)
			assert.Zero(t, h.killCount())
			assert.Equal(t, []os.Signal{syscall.SIGQUIT}, h.sentSignals())
			assert.Equal(t, []Transition{TransitionSignalReceived, TransitionQuitForwarded, TransitionChildExited}, transitions)
		})
	}
}

func TestQuitDuringGraceBypassesRemainder(t *testing.T) {
	h := newFakeHandle()
	h.onQuit = func(h *fakeHandle) { h.exit(errors.New("signal: quit")) }
	sigs := make(chan os.Signal, 2)
	sigs <- syscall.SIGTERM

	done := make(chan Result, 1)
	go func() {
		res, err := Supervise(context.Background(), h, sigs, Config{Mode: config.TerminationGraceful, TermTimeout: time.Hour}, nil)
		require.NoError(t, err)
		done <- res
	}()

	// Wait until term has been forwarded, then issue quit.
	require.Eventually(t, func() bool {
		return len(h.sentSignals()) == 1
	}, time.Second, 5*time.Millisecond)
	sigs <- syscall.SIGQUIT

	select {
	case res := <-done:
		assert.Equal(t, OutcomeQuit, res.Outcome)
		assert.Zero(t, h.killCount())
	case <-time.After(2 * time.Second):
		t.Fatal("quit during grace did not end supervision")
	}
}

func TestContextCancelFollowsTerminationPolicy(t *testing.T) {
	t.Run("immediate", func(t *testing.T) {
		h := newFakeHandle()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := Supervise(ctx, h, make(chan os.Signal), Config{Mode: config.TerminationImmediate}, nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeKilled, res.Outcome)
		assert.Equal(t, 1, h.killCount())
	})

	t.Run("graceful", func(t *testing.T) {
		h := newFakeHandle()
		h.onTerm = func(h *fakeHandle) { go h.exit(nil) }
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := Supervise(ctx, h, make(chan os.Signal), Config{Mode: config.TerminationGraceful, TermTimeout: time.Second}, nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTermExited, res.Outcome)
		assert.Zero(t, h.killCount())
	})
}
