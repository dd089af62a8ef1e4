// Package transport contains the transports a client uses to reach an
// injector: a direct TCP transport and overlay transports (an I2P router
// driven as an external process and Tor driven through its control port).
//
// Using a transport is a two-step process. First, [Transport.BeginBootstrap]
// returns a [Bootstrap] handle whose readiness you poll, usually through the
// readiness.Watch function. Once the handle is ready, [Bootstrap.OpenSession]
// returns a connection to the injector. A [Session] binds that connection to
// the bootstrap that created it, so closing the session also tears down
// the bootstrap (e.g., it stops the overlay router).
package transport

import (
	"context"
	"net"
	"time"

	"github.com/ouinet-go/ouinet/internal/readiness"
)

// Kind is the kind of transport.
type Kind string

const (
	// KindTCP is the direct TCP transport.
	KindTCP = Kind("tcp")

	// KindOverlay is the I2P overlay transport.
	KindOverlay = Kind("i2p")

	// KindTor is the Tor overlay transport.
	KindTor = Kind("tor")
)

// Config is the immutable configuration of a transport.
type Config struct {
	// Kind is the MANDATORY transport kind.
	Kind Kind

	// Name is the OPTIONAL name used in logs and errors. When
	// empty, we use the Kind as the name.
	Name string

	// Endpoint is the MANDATORY injector endpoint. For TCP and Tor
	// this is an "host:port" endpoint. For the overlay this is either
	// a ".i2p" address, optionally with port, or the injector's
	// public overlay identity.
	Endpoint string

	// ReadyTimeout is the OPTIONAL bootstrap deadline. When zero, we
	// use the default deadline for the transport kind.
	ReadyTimeout time.Duration
}

// TransportName returns the name of the transport.
func (c Config) TransportName() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Kind)
}

// EffectiveReadyTimeout returns the bootstrap deadline to use.
func (c Config) EffectiveReadyTimeout() time.Duration {
	if c.ReadyTimeout > 0 {
		return c.ReadyTimeout
	}
	switch c.Kind {
	case KindOverlay:
		return readiness.DefaultOverlayReadyTimeout
	case KindTor:
		return readiness.DefaultTorReadyTimeout
	default:
		return readiness.DefaultTCPReadyTimeout
	}
}

// Transport is a way to reach the injector.
type Transport interface {
	// Config returns the transport configuration.
	Config() Config

	// BeginBootstrap starts bootstrapping and returns immediately. The
	// context bounds the startup of the bootstrap, not its lifetime: a
	// started bootstrap runs until you call Stop.
	BeginBootstrap(ctx context.Context) (Bootstrap, error)
}

// Bootstrap is a transport being bootstrapped.
type Bootstrap interface {
	// PollReady returns the bootstrap status without blocking.
	readiness.Prober

	// OpenSession opens a connection to the injector. Calling this
	// method before the bootstrap is Ready fails.
	OpenSession(ctx context.Context) (net.Conn, error)

	// Stop tears down the bootstrap. This method is idempotent.
	Stop()
}
