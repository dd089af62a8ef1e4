package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/readiness"
	"golang.org/x/net/proxy"
)

// ErrNotReady indicates that OpenSession was called before Ready.
var ErrNotReady = errors.New("transport: not ready")

// TCP is the direct TCP transport. Its bootstrap is a no-op that is
// immediately ready, so all the work happens when opening the session.
type TCP struct {
	config Config
	dialer proxy.ContextDialer
	logger model.Logger
}

var _ Transport = &TCP{}

// NewTCP creates a new [TCP] transport.
func NewTCP(config Config, logger model.Logger) *TCP {
	config.Kind = KindTCP
	return &TCP{
		config: config,
		dialer: underlyingDialer,
		logger: model.ValidLoggerOrDefault(logger),
	}
}

// Config implements Transport.
func (t *TCP) Config() Config {
	return t.config
}

// BeginBootstrap implements Transport.
func (t *TCP) BeginBootstrap(ctx context.Context) (Bootstrap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tcpBootstrap{
		dialer: &dialerLogger{
			Dialer:    t.dialer,
			Logger:    t.logger,
			Transport: t.config.TransportName(),
		},
		endpoint: t.config.Endpoint,
	}, nil
}

type tcpBootstrap struct {
	dialer   proxy.ContextDialer
	endpoint string
	stopped  atomic.Bool
}

// PollReady implements Bootstrap.
func (b *tcpBootstrap) PollReady() readiness.Status {
	if b.stopped.Load() {
		return readiness.StatusFailed(net.ErrClosed)
	}
	return readiness.StatusReady
}

// OpenSession implements Bootstrap.
func (b *tcpBootstrap) OpenSession(ctx context.Context) (net.Conn, error) {
	if b.stopped.Load() {
		return nil, ErrNotReady
	}
	conn, err := b.dialer.DialContext(ctx, "tcp", b.endpoint)
	if err != nil {
		return nil, connectFailed(err)
	}
	return conn, nil
}

// Stop implements Bootstrap.
func (b *tcpBootstrap) Stop() {
	b.stopped.Store(true)
}
