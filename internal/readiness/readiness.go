// Package readiness decides when a transport is ready to carry sessions.
//
// Transports expose their readiness through the [Prober] interface. The
// [Watch] function polls a [Prober] at a fixed interval until it is ready,
// it fails, or the context deadline expires. Each transport uses its own
// deadline, because bootstrapping an overlay takes much longer than
// connecting to a TCP endpoint.
//
// When a subsystem has no structured API for telling us it is ready, we
// scan its output with a [MarkerScanner] looking for a marker line.
package readiness

import (
	"context"
	"errors"
	"time"
)

// State is the readiness state.
type State int

const (
	// Pending means that the transport is still bootstrapping.
	Pending = State(iota)

	// Ready means that the transport can open sessions.
	Ready

	// Failed means that the bootstrap failed.
	Failed

	// TimedOut means that the deadline expired before Ready.
	TimedOut

	// Cancelled means that the caller is not interested anymore.
	Cancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Status is what a [Prober] returns.
type Status struct {
	// State is Pending, Ready or Failed.
	State State

	// Reason is the reason why we failed. It is nil unless
	// State is Failed.
	Reason error
}

// StatusPending is the pending status.
var StatusPending = Status{State: Pending}

// StatusReady is the ready status.
var StatusReady = Status{State: Ready}

// StatusFailed returns a failed status with the given reason.
func StatusFailed(reason error) Status {
	if reason == nil {
		reason = ErrBootstrapFailed
	}
	return Status{State: Failed, Reason: reason}
}

// ErrBootstrapFailed is the default reason of a failed status.
var ErrBootstrapFailed = errors.New("bootstrap failed")

// Prober is a non-blocking readiness probe.
type Prober interface {
	// PollReady returns the current status without blocking.
	PollReady() Status
}

// Notifier is an optional interface a [Prober] may implement to wake
// up [Watch] as soon as the status changes, rather than at the next tick.
type Notifier interface {
	// Changed returns a channel that is closed on the first
	// transition out of the Pending state.
	Changed() <-chan struct{}
}

// DefaultInterval is the default polling interval.
const DefaultInterval = time.Second

// Default per-transport readiness deadlines.
const (
	DefaultTCPReadyTimeout     = 15 * time.Second
	DefaultOverlayReadyTimeout = 600 * time.Second
	DefaultTorReadyTimeout     = 600 * time.Second
)

// Outcome is the result of [Watch].
type Outcome struct {
	// State is Ready, Failed, TimedOut or Cancelled.
	State State

	// Reason explains why the state is not Ready.
	Reason error

	// Elapsed is the time elapsed since we started watching.
	Elapsed time.Duration
}

// Watch polls the prober every interval until it is Ready or Failed, or
// until the context is done. An expired context deadline maps to TimedOut
// and any other context error maps to Cancelled. A zero or negative
// interval means [DefaultInterval].
func Watch(ctx context.Context, prober Prober, interval time.Duration) Outcome {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t0 := time.Now()
	var changed <-chan struct{}
	if n, ok := prober.(Notifier); ok {
		changed = n.Changed()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		// Honour an expired context first so that a prober becoming
		// ready after the deadline does not win.
		if err := ctx.Err(); err != nil {
			return contextOutcome(err, time.Since(t0))
		}
		status := prober.PollReady()
		switch status.State {
		case Ready:
			return Outcome{State: Ready, Elapsed: time.Since(t0)}
		case Failed:
			return Outcome{State: Failed, Reason: status.Reason, Elapsed: time.Since(t0)}
		}
		select {
		case <-ctx.Done():
			return contextOutcome(ctx.Err(), time.Since(t0))
		case <-ticker.C:
		case <-changed:
			changed = nil // closed channel: only use it once
		}
	}
}

func contextOutcome(err error, elapsed time.Duration) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{State: TimedOut, Reason: err, Elapsed: elapsed}
	}
	return Outcome{State: Cancelled, Reason: err, Elapsed: elapsed}
}
