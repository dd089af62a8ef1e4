// Package client implements the client facade. A [Client] obtains a session
// with the injector from the broker and relays a single exchange over it.
// A [Proxy] exposes the same functionality as a local HTTP proxy.
package client

import (
	"context"
	"time"

	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/relay"
	"github.com/ouinet-go/ouinet/internal/transport"
)

// Connector opens sessions with the injector. The broker.Broker
// type implements this interface.
type Connector interface {
	Connect(ctx context.Context) (*transport.Session, error)
}

// Client fetches resources through the injector. The zero value is
// invalid; construct using [New].
type Client struct {
	// FetchTimeout is the time budget for relaying an exchange once we
	// have a session. When zero, we use relay.DefaultFetchTimeout.
	FetchTimeout time.Duration

	// InjectorCredentials is the "<username>:<password>" pair we use to
	// authenticate with the injector when the exchange does not carry its
	// own credentials. Empty means no authentication.
	InjectorCredentials string

	connector Connector
	logger    model.Logger
}

// New creates a new [Client].
func New(logger model.Logger, connector Connector) *Client {
	return &Client{
		connector: connector,
		logger:    model.ValidLoggerOrDefault(logger),
	}
}

// Fetch runs one arbitration round and relays the exchange over the
// session it obtains. We do not retry. When arbitration fails the error
// matches errorsx.ErrNoTransportAvailable; when relaying fails it matches
// either errorsx.ErrTransportBroken or errorsx.ErrResponseShapeMismatch.
func (c *Client) Fetch(ctx context.Context, exchange *relay.Exchange) (*relay.Response, error) {
	sess, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	timeout := c.FetchTimeout
	if timeout <= 0 {
		timeout = relay.DefaultFetchTimeout
	}
	if exchange.Credentials == "" && c.InjectorCredentials != "" {
		withCredentials := *exchange
		withCredentials.Credentials = c.InjectorCredentials
		exchange = &withCredentials
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return relay.Do(ctx, c.logger, sess, exchange)
}
