package errorsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"
)

func TestClassifyGenericError(t *testing.T) {
	t.Run("for an already wrapped error", func(t *testing.T) {
		err := &ErrWrapper{Failure: FailureEOFError, Kind: ErrTransportBroken}
		if ClassifyGenericError(err) != FailureEOFError {
			t.Fatal("unexpected result")
		}
	})

	t.Run("for context.Canceled", func(t *testing.T) {
		if ClassifyGenericError(context.Canceled) != FailureInterrupted {
			t.Fatal("unexpected result")
		}
	})

	t.Run("for context.DeadlineExceeded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
		defer cancel()
		<-ctx.Done()
		if ClassifyGenericError(ctx.Err()) != FailureGenericTimeoutError {
			t.Fatal("unexpected result")
		}
	})

	t.Run("for io.EOF", func(t *testing.T) {
		if ClassifyGenericError(fmt.Errorf("read: %w", io.EOF)) != FailureEOFError {
			t.Fatal("unexpected result")
		}
	})

	t.Run("for syscall errors", func(t *testing.T) {
		expect := map[syscall.Errno]string{
			syscall.ECONNREFUSED: FailureConnectionRefused,
			syscall.ECONNRESET:   FailureConnectionReset,
			syscall.EHOSTUNREACH: FailureHostUnreachable,
			syscall.ENETUNREACH:  FailureNetworkUnreachable,
			syscall.ETIMEDOUT:    FailureTimedOut,
		}
		for errno, failure := range expect {
			if got := ClassifyGenericError(errno); got != failure {
				t.Fatal("for", errno, "expected", failure, "got", got)
			}
		}
	})

	t.Run("for sentinels", func(t *testing.T) {
		if ClassifyGenericError(ErrIdentityMissing) != FailureIdentityMissing {
			t.Fatal("unexpected result")
		}
		if ClassifyGenericError(ErrTimedOut) != FailureGenericTimeoutError {
			t.Fatal("unexpected result")
		}
	})

	t.Run("for string suffixes", func(t *testing.T) {
		if ClassifyGenericError(errors.New("read tcp: i/o timeout")) != FailureGenericTimeoutError {
			t.Fatal("unexpected result")
		}
		if ClassifyGenericError(errors.New("use of closed network connection")) != FailureConnectionAlreadyClosed {
			t.Fatal("unexpected result")
		}
	})

	t.Run("for unknown errors", func(t *testing.T) {
		if ClassifyGenericError(errors.New("antani")) != "unknown_failure: antani" {
			t.Fatal("unexpected result")
		}
	})
}

func TestErrWrapper(t *testing.T) {
	t.Run("NewErrWrapper panics on invalid arguments", func(t *testing.T) {
		check := func(f func()) {
			t.Helper()
			defer func() {
				if recover() == nil {
					t.Fatal("expected a panic")
				}
			}()
			f()
		}
		check(func() { NewErrWrapper(nil, StageRelay, "", ErrTransportBroken, io.EOF) })
		check(func() { NewErrWrapper(ClassifyGenericError, "", "", ErrTransportBroken, io.EOF) })
		check(func() { NewErrWrapper(ClassifyGenericError, StageRelay, "", nil, io.EOF) })
		check(func() { NewErrWrapper(ClassifyGenericError, StageRelay, "", ErrTransportBroken, nil) })
	})

	t.Run("errors.Is matches kind and wrapped error", func(t *testing.T) {
		err := NewErrWrapper(ClassifyGenericError, StageRelay, "tcp", ErrTransportBroken, io.EOF)
		if !errors.Is(err, ErrTransportBroken) {
			t.Fatal("expected to match the kind")
		}
		if !errors.Is(err, io.EOF) {
			t.Fatal("expected to match the wrapped error")
		}
		if err.Error() != "relay: tcp: transport broken: eof_error" {
			t.Fatal("unexpected string", err.Error())
		}
	})

	t.Run("we do not wrap twice with the same kind", func(t *testing.T) {
		inner := NewErrWrapper(ClassifyGenericError, StageRelay, "tcp", ErrTransportBroken, io.EOF)
		outer := NewErrWrapper(ClassifyGenericError, StageRelay, "tcp", ErrTransportBroken, inner)
		if outer != inner {
			t.Fatal("expected the same wrapper")
		}
	})

	t.Run("MarshalJSON emits the failure", func(t *testing.T) {
		err := &ErrWrapper{Failure: FailureEOFError}
		data, _ := err.MarshalJSON()
		if string(data) != `"eof_error"` {
			t.Fatal("unexpected JSON", string(data))
		}
	})
}

func TestArbitrationError(t *testing.T) {
	t.Run("all timed out", func(t *testing.T) {
		err := NewArbitrationError("r", []*TransportFailure{
			NewTransportFailure("tcp", ErrTimedOut, nil, time.Second),
			NewTransportFailure("i2p", ErrTimedOut, context.DeadlineExceeded, time.Second),
		})
		if err.Outcome != OutcomeAllTimedOut {
			t.Fatal("unexpected outcome", err.Outcome)
		}
		if !errors.Is(err, ErrNoTransportAvailable) || !errors.Is(err, ErrTimedOut) {
			t.Fatal("errors.Is does not work as intended")
		}
	})

	t.Run("mixed failures", func(t *testing.T) {
		err := NewArbitrationError("r", []*TransportFailure{
			NewTransportFailure("tcp", ErrConnectFailed, syscall.ECONNREFUSED, time.Second),
			NewTransportFailure("i2p", ErrTimedOut, nil, time.Second),
		})
		if err.Outcome != OutcomeAllFailed {
			t.Fatal("unexpected outcome", err.Outcome)
		}
		if !errors.Is(err, syscall.ECONNREFUSED) {
			t.Fatal("expected to match the underlying error")
		}
		expect := "arbitration: no transport available (all_failed): " +
			"tcp: connect failed: connection_refused; i2p: timed out: generic_timeout_error"
		if err.Error() != expect {
			t.Fatal("unexpected string", err.Error())
		}
	})

	t.Run("no failures at all", func(t *testing.T) {
		err := NewArbitrationError("r", nil)
		if err.Outcome != OutcomeAllFailed {
			t.Fatal("unexpected outcome", err.Outcome)
		}
	})
}
