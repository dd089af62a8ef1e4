package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/model"
	"golang.org/x/net/proxy"
)

// underlyingDialer is the dialer we use by default.
var underlyingDialer = &net.Dialer{
	KeepAlive: 15 * time.Second,
}

// dialerLogger is a dialer with logging.
type dialerLogger struct {
	// Dialer is the underlying dialer.
	Dialer proxy.ContextDialer

	// Logger is the logger to use.
	Logger model.Logger

	// Transport is the name of the transport.
	Transport string
}

var _ proxy.ContextDialer = &dialerLogger{}

// DialContext implements proxy.ContextDialer.
func (d *dialerLogger) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.Logger.Debugf("%s: dial %s/%s...", d.Transport, address, network)
	start := time.Now()
	conn, err := d.Dialer.DialContext(ctx, network, address)
	elapsed := time.Since(start)
	if err != nil {
		d.Logger.Debugf("%s: dial %s/%s... %s in %s", d.Transport, address, network, err, elapsed)
		return nil, err
	}
	d.Logger.Debugf("%s: dial %s/%s... ok in %s", d.Transport, address, network, elapsed)
	return conn, nil
}

// newSOCKS5Dialer returns a dialer that connects through the SOCKS5
// proxy listening at proxyAddr.
func newSOCKS5Dialer(proxyAddr string) (proxy.ContextDialer, error) {
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, underlyingDialer)
	if err != nil {
		return nil, err
	}
	// the dialer returned by proxy.SOCKS5 always implements DialContext
	return dialer.(proxy.ContextDialer), nil
}

// connectFailed wraps a dial error so that it matches [errorsx.ErrConnectFailed].
func connectFailed(err error) error {
	return fmt.Errorf("%w: %w", errorsx.ErrConnectFailed, err)
}
