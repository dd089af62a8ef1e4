package errorsx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ouinet-go/ouinet/internal/runtimex"
)

// Stages in which an operation may fail.
const (
	// StageArbitration is the stage in which the broker races transports.
	StageArbitration = "arbitration"

	// StageRelay is the stage in which we relay an exchange over a session.
	StageRelay = "relay"

	// StageIdentity is the stage in which the injector loads identities.
	StageIdentity = "identity"
)

// ErrWrapper is our error wrapper. It tells which stage failed, over
// which transport, the taxonomy error (one of the sentinels in this
// package) and the failure string.
type ErrWrapper struct {
	// Failure is the failure string. This is either one of the
	// FailureXXX strings or `unknown_failure: ...`.
	Failure string

	// Stage is the stage that failed (e.g., StageRelay).
	Stage string

	// Transport is the name of the transport, if known.
	Transport string

	// Kind is the taxonomy sentinel (e.g., ErrTransportBroken).
	Kind error

	// WrappedErr is the error that we're wrapping.
	WrappedErr error
}

// NewErrWrapper creates a new ErrWrapper. This function panics if
// kind or err are nil, or if stage is empty.
func NewErrWrapper(c Classifier, stage, transport string, kind, err error) *ErrWrapper {
	runtimex.Assert(c != nil, "nil classifier")
	runtimex.Assert(stage != "", "empty stage")
	runtimex.Assert(kind != nil, "nil kind")
	runtimex.Assert(err != nil, "nil err")
	var wrapper *ErrWrapper
	if errors.As(err, &wrapper) && errors.Is(wrapper.Kind, kind) {
		return wrapper // already classified with the same kind
	}
	return &ErrWrapper{
		Failure:    c(err),
		Stage:      stage,
		Transport:  transport,
		Kind:       kind,
		WrappedErr: err,
	}
}

// Error implements error.
func (e *ErrWrapper) Error() string {
	if e.Transport != "" {
		return fmt.Sprintf("%s: %s: %s: %s", e.Stage, e.Transport, e.Kind.Error(), e.Failure)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind.Error(), e.Failure)
}

// Unwrap allows errors.Is to match both the taxonomy sentinel
// and the underlying error.
func (e *ErrWrapper) Unwrap() []error {
	return []error{e.Kind, e.WrappedErr}
}

// MarshalJSON converts an ErrWrapper to a JSON value.
func (e *ErrWrapper) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Failure)
}

// TransportFailure explains why a transport did not win a round.
type TransportFailure struct {
	// Transport is the transport name.
	Transport string

	// Kind is one of ErrTransportFailed, ErrTimedOut,
	// ErrConnectFailed and ErrInterrupted.
	Kind error

	// Failure is the classified failure string.
	Failure string

	// Err is the underlying error.
	Err error

	// Elapsed is the time elapsed since the transport's bootstrap started.
	Elapsed time.Duration
}

// Error implements error.
func (tf *TransportFailure) Error() string {
	return fmt.Sprintf("%s: %s: %s", tf.Transport, tf.Kind.Error(), tf.Failure)
}

// Unwrap returns both the kind and the underlying error.
func (tf *TransportFailure) Unwrap() []error {
	if tf.Err == nil {
		return []error{tf.Kind}
	}
	return []error{tf.Kind, tf.Err}
}

// NewTransportFailure creates a TransportFailure classifying err.
func NewTransportFailure(transport string, kind, err error, elapsed time.Duration) *TransportFailure {
	if err == nil {
		err = kind
	}
	return &TransportFailure{
		Transport: transport,
		Kind:      kind,
		Failure:   ClassifyGenericError(err),
		Err:       err,
		Elapsed:   elapsed,
	}
}

// Arbitration round outcomes.
const (
	OutcomeWon         = "won"
	OutcomeAllFailed   = "all_failed"
	OutcomeAllTimedOut = "all_timed_out"
)

// ArbitrationError is returned when no transport wins a round. It
// contains exactly one TransportFailure per configured transport.
type ArbitrationError struct {
	// RoundID identifies the round in logs.
	RoundID string

	// Outcome is OutcomeAllFailed or OutcomeAllTimedOut.
	Outcome string

	// Failures contains the per-transport reasons in configuration order.
	Failures []*TransportFailure
}

// Error implements error.
func (e *ArbitrationError) Error() string {
	var reasons []string
	for _, f := range e.Failures {
		reasons = append(reasons, f.Error())
	}
	return fmt.Sprintf("%s: %s (%s): %s", StageArbitration,
		ErrNoTransportAvailable.Error(), e.Outcome, strings.Join(reasons, "; "))
}

// Unwrap makes errors.Is match ErrNoTransportAvailable as well
// as any per-transport reason.
func (e *ArbitrationError) Unwrap() []error {
	out := []error{ErrNoTransportAvailable}
	for _, f := range e.Failures {
		out = append(out, f)
	}
	return out
}

// NewArbitrationError creates an ArbitrationError computing the outcome
// from the failures: OutcomeAllTimedOut if all of them timed out and
// OutcomeAllFailed otherwise.
func NewArbitrationError(roundID string, failures []*TransportFailure) *ArbitrationError {
	outcome := OutcomeAllTimedOut
	if len(failures) <= 0 {
		outcome = OutcomeAllFailed
	}
	for _, f := range failures {
		if !errors.Is(f.Kind, ErrTimedOut) {
			outcome = OutcomeAllFailed
			break
		}
	}
	return &ArbitrationError{
		RoundID:  roundID,
		Outcome:  outcome,
		Failures: failures,
	}
}
