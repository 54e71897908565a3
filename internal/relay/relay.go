// Package relay implements the parent-side signal relay that governs how
// externally delivered termination requests are forwarded to a supervised
// child and escalated once a grace period elapses.
package relay

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/Paintersrp/forq/internal/config"
	"github.com/Paintersrp/forq/internal/metrics"
	"github.com/Paintersrp/forq/internal/runtime"
)

// Outcome describes how supervision of one child concluded.
type Outcome string

const (
	// OutcomeCompleted means the child exited on its own, without any
	// termination request.
	OutcomeCompleted Outcome = "completed"

	// OutcomeQuit means a quit request was forwarded and the child exited
	// immediately, with no grace period involved.
	OutcomeQuit Outcome = "quit"

	// OutcomeTermExited means the child honoured a forwarded term request
	// within the grace period.
	OutcomeTermExited Outcome = "term_exited"

	// OutcomeKilled means the child was forcibly killed, either because
	// the worker runs in immediate mode or because the grace period
	// elapsed first.
	OutcomeKilled Outcome = "killed"
)

// Transition identifies a state change reported while supervising a child.
type Transition string

const (
	TransitionSignalReceived Transition = "signal_received"
	TransitionTermForwarded  Transition = "term_forwarded"
	TransitionQuitForwarded  Transition = "quit_forwarded"
	TransitionForcedKill     Transition = "forced_kill"
	TransitionChildExited    Transition = "child_exited"
)

// Config captures the termination policy fixed at worker startup.
type Config struct {
	Mode        config.TerminationMode
	TermTimeout time.Duration
}

// Result reports the conclusion of one supervision.
type Result struct {
	Outcome Outcome

	// ExitErr is the child's exit error as observed by the parent, when
	// an exit was observed at all.
	ExitErr error

	// GraceElapsed is the time spent waiting between forwarding term and
	// observing the child exit or issuing the forced kill.
	GraceElapsed time.Duration
}

// Reporter receives transition notifications. A nil Reporter is valid.
type Reporter func(t Transition, sig os.Signal)

// Supervise runs the relay loop for a single live child. It returns once the
// child's exit has been observed. External signals arrive on sigs; ctx
// cancellation is routed through the same termination path as a term request
// so programmatic shutdown and ^C behave identically.
func Supervise(ctx context.Context, h runtime.Handle, sigs <-chan os.Signal, cfg Config, report Reporter) (Result, error) {
	notify := func(t Transition, sig os.Signal) {
		if report != nil {
			report(t, sig)
		}
	}

	for {
		select {
		case <-h.Done():
			notify(TransitionChildExited, nil)
			return Result{Outcome: OutcomeCompleted, ExitErr: h.ExitErr()}, nil

		case sig := <-sigs:
			metrics.IncrementSignalReceived(sigName(sig))
			notify(TransitionSignalReceived, sig)
			if isQuit(sig) {
				return forwardQuit(h, notify)
			}
			return terminate(h, sigs, cfg, notify)

		case <-ctx.Done():
			return terminate(h, sigs, cfg, notify)
		}
	}
}

// forwardQuit relays a quit request and blocks until the child exits. There
// is deliberately no timeout: quit expects immediate, cleanup-free exit
// semantics from the child.
func forwardQuit(h runtime.Handle, notify Reporter) (Result, error) {
	if err := h.Signal(syscall.SIGQUIT); err != nil {
		return Result{}, err
	}
	notify(TransitionQuitForwarded, syscall.SIGQUIT)
	<-h.Done()
	notify(TransitionChildExited, nil)
	metrics.IncrementChildExit(string(OutcomeQuit))
	return Result{Outcome: OutcomeQuit, ExitErr: h.ExitErr()}, nil
}

// terminate applies the configured termination policy to a live child.
func terminate(h runtime.Handle, sigs <-chan os.Signal, cfg Config, notify Reporter) (Result, error) {
	if cfg.Mode != config.TerminationGraceful {
		// Legacy policy: no cleanup opportunity for the child.
		if err := h.Kill(); err != nil {
			return Result{}, err
		}
		notify(TransitionForcedKill, nil)
		metrics.IncrementForcedKill()
		<-h.Done()
		notify(TransitionChildExited, nil)
		metrics.IncrementChildExit(string(OutcomeKilled))
		return Result{Outcome: OutcomeKilled, ExitErr: h.ExitErr()}, nil
	}

	if err := h.Signal(syscall.SIGTERM); err != nil {
		return Result{}, err
	}
	notify(TransitionTermForwarded, syscall.SIGTERM)
	metrics.IncrementTermForwarded()

	start := time.Now()
	timer := time.NewTimer(cfg.TermTimeout)
	defer timer.Stop()

	for {
		select {
		case <-h.Done():
			elapsed := time.Since(start)
			notify(TransitionChildExited, nil)
			metrics.ObserveGraceWait(elapsed)
			metrics.IncrementChildExit(string(OutcomeTermExited))
			return Result{Outcome: OutcomeTermExited, ExitErr: h.ExitErr(), GraceElapsed: elapsed}, nil

		case <-timer.C:
			elapsed := time.Since(start)
			if err := h.Kill(); err != nil {
				return Result{}, err
			}
			notify(TransitionForcedKill, nil)
			metrics.IncrementForcedKill()
			metrics.ObserveGraceWait(elapsed)
			<-h.Done()
			notify(TransitionChildExited, nil)
			metrics.IncrementChildExit(string(OutcomeKilled))
			return Result{Outcome: OutcomeKilled, ExitErr: h.ExitErr(), GraceElapsed: elapsed}, nil

		case sig := <-sigs:
			metrics.IncrementSignalReceived(sigName(sig))
			notify(TransitionSignalReceived, sig)
			// A quit during the grace period bypasses what remains of
			// it. Further term requests do not reset the timer.
			if isQuit(sig) {
				return forwardQuit(h, notify)
			}
		}
	}
}

func isQuit(sig os.Signal) bool {
	return sig == syscall.SIGQUIT
}

func sigName(sig os.Signal) string {
	switch sig {
	case syscall.SIGQUIT:
		return "quit"
	case syscall.SIGTERM:
		return "term"
	case syscall.SIGINT:
		return "int"
	default:
		return sig.String()
	}
}
