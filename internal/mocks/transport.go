package mocks

import (
	"context"
	"net"

	"github.com/ouinet-go/ouinet/internal/readiness"
	"github.com/ouinet-go/ouinet/internal/transport"
)

// Transport is a mockable transport.Transport.
type Transport struct {
	MockConfig         func() transport.Config
	MockBeginBootstrap func(ctx context.Context) (transport.Bootstrap, error)
}

// Config calls MockConfig.
func (t *Transport) Config() transport.Config {
	return t.MockConfig()
}

// BeginBootstrap calls MockBeginBootstrap.
func (t *Transport) BeginBootstrap(ctx context.Context) (transport.Bootstrap, error) {
	return t.MockBeginBootstrap(ctx)
}

var _ transport.Transport = &Transport{}

// Bootstrap is a mockable transport.Bootstrap.
type Bootstrap struct {
	MockPollReady   func() readiness.Status
	MockOpenSession func(ctx context.Context) (net.Conn, error)
	MockStop        func()
}

// PollReady calls MockPollReady.
func (b *Bootstrap) PollReady() readiness.Status {
	return b.MockPollReady()
}

// OpenSession calls MockOpenSession.
func (b *Bootstrap) OpenSession(ctx context.Context) (net.Conn, error) {
	return b.MockOpenSession(ctx)
}

// Stop calls MockStop.
func (b *Bootstrap) Stop() {
	b.MockStop()
}

var _ transport.Bootstrap = &Bootstrap{}
