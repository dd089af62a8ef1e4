package errorsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
)

// Failure strings. These are the values of ErrWrapper.Failure.
const (
	FailureConnectionRefused       = "connection_refused"
	FailureConnectionReset         = "connection_reset"
	FailureConnectionAlreadyClosed = "connection_already_closed"
	FailureHostUnreachable         = "host_unreachable"
	FailureNetworkUnreachable      = "network_unreachable"
	FailureTimedOut                = "timed_out"
	FailureGenericTimeoutError     = "generic_timeout_error"
	FailureEOFError                = "eof_error"
	FailureInterrupted             = "interrupted"
	FailureSOCKSError              = "socks_error"
	FailureBootstrapFailed         = "bootstrap_failed"
	FailureIdentityMissing         = "identity_missing"
	FailureIdentityCorrupt         = "identity_corrupt"
	FailureResponseShapeMismatch   = "response_shape_mismatch"
)

// Classifier maps a Go error to a failure string.
type Classifier func(err error) string

// ClassifyGenericError maps an error to a failure string. If the error
// is already an *ErrWrapper we return its Failure. If we cannot map
// the error, we return "unknown_failure: " followed by the error string.
func ClassifyGenericError(err error) string {
	var wrapper *ErrWrapper
	if errors.As(err, &wrapper) {
		return wrapper.Failure
	}
	if failure := classifySentinel(err); failure != "" {
		return failure
	}
	if failure := classifySyscallError(err); failure != "" {
		return failure
	}
	if errors.Is(err, context.Canceled) {
		return FailureInterrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureGenericTimeoutError
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return FailureEOFError
	}
	if failure := classifyWithStringSuffix(err); failure != "" {
		return failure
	}
	return fmt.Sprintf("unknown_failure: %s", err.Error())
}

func classifySentinel(err error) string {
	switch {
	case errors.Is(err, ErrIdentityMissing):
		return FailureIdentityMissing
	case errors.Is(err, ErrIdentityCorrupt):
		return FailureIdentityCorrupt
	case errors.Is(err, ErrResponseShapeMismatch):
		return FailureResponseShapeMismatch
	case errors.Is(err, ErrTimedOut):
		return FailureGenericTimeoutError
	case errors.Is(err, ErrInterrupted):
		return FailureInterrupted
	default:
		return ""
	}
}

func classifySyscallError(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch errno {
	case syscall.ECONNREFUSED:
		return FailureConnectionRefused
	case syscall.ECONNRESET:
		return FailureConnectionReset
	case syscall.EHOSTUNREACH:
		return FailureHostUnreachable
	case syscall.ENETUNREACH:
		return FailureNetworkUnreachable
	case syscall.ETIMEDOUT:
		return FailureTimedOut
	default:
		return ""
	}
}

// classifyWithStringSuffix handles errors we can only recognize by
// looking at their string representation.
func classifyWithStringSuffix(err error) string {
	s := err.Error()
	switch {
	case strings.HasSuffix(s, "operation was canceled"):
		return FailureInterrupted
	case strings.HasSuffix(s, "i/o timeout"):
		return FailureGenericTimeoutError
	case strings.HasSuffix(s, "use of closed network connection"):
		return FailureConnectionAlreadyClosed
	case strings.Contains(s, "socks connect"):
		return FailureSOCKSError
	default:
		return ""
	}
}
