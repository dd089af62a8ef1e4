// Package errorsx contains the error taxonomy shared by the identity
// store, the transports, the session broker and the relay protocol.
//
// Each failure is represented by a sentinel error, such that callers
// can use errors.Is to figure out what went wrong, and by a failure
// string, which is what we log and what we export as metrics. The
// failure strings are loosely compatible with the ones used by OONI
// (see https://github.com/ooni/spec/blob/master/data-formats/df-007-errors.md).
package errorsx

import "errors"

// ErrIdentityMissing indicates that the identity store does not
// contain the requested identity. This error is fatal at startup.
var ErrIdentityMissing = errors.New("identity missing")

// ErrIdentityCorrupt indicates that we cannot parse identity
// material. This error is fatal at startup.
var ErrIdentityCorrupt = errors.New("identity corrupt")

// ErrConnectFailed indicates that a transport became ready but
// we could not open a session with the injector.
var ErrConnectFailed = errors.New("connect failed")

// ErrTimedOut indicates that a transport did not become ready
// before its own readiness deadline.
var ErrTimedOut = errors.New("timed out")

// ErrTransportFailed indicates that a transport's bootstrap
// reported a failure while becoming ready.
var ErrTransportFailed = errors.New("transport failed")

// ErrInterrupted indicates that the caller interrupted an
// arbitration round before it could complete.
var ErrInterrupted = errors.New("interrupted")

// ErrNoTransportAvailable indicates that every configured transport
// failed or timed out during an arbitration round.
var ErrNoTransportAvailable = errors.New("no transport available")

// ErrTransportBroken indicates an I/O error on an established session.
var ErrTransportBroken = errors.New("transport broken")

// ErrResponseShapeMismatch indicates that the response we received
// does not have the shape the caller expected.
var ErrResponseShapeMismatch = errors.New("response shape mismatch")
