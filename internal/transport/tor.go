package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/cretz/bine/control"
	"github.com/cretz/bine/tor"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/readiness"
	"golang.org/x/sys/execabs"
)

var (
	// ErrTorUnableToGetSOCKSProxyAddress indicates that we could not
	// get the SOCKS proxy address from the tor control port.
	ErrTorUnableToGetSOCKSProxyAddress = errors.New("transport: tor: unable to get socks proxy address")

	// ErrTorReturnedUnsupportedProxy indicates that tor returned
	// a proxy address we cannot use (e.g., a unix socket).
	ErrTorReturnedUnsupportedProxy = errors.New("transport: tor: returned unsupported proxy")

	// errNoTorControl indicates that the tor instance has no control connection.
	errNoTorControl = errors.New("transport: tor: no tor control")
)

// TorOptions contains the options of the [Tor] transport.
type TorOptions struct {
	// Binary is the OPTIONAL tor binary. When empty, we use the
	// value of the TOR_BINARY environment variable or "tor".
	Binary string

	// DataDir is the OPTIONAL tor data directory. When empty,
	// tor uses a temporary directory removed on close.
	DataDir string

	// ExtraArgs contains OPTIONAL extra command line arguments
	// (e.g., to configure pluggable transports).
	ExtraArgs []string
}

// Tor is the Tor overlay transport. Bootstrapping starts tor with the
// network disabled, enables the network through the control port and
// waits for tor to complete bootstrapping. Sessions are opened through
// the SOCKS5 proxy that tor exposes.
type Tor struct {
	config  Config
	logger  model.Logger
	options TorOptions

	// testExecabsLookPath allows us to mock execabs.LookPath.
	testExecabsLookPath func(name string) (string, error)

	// testTorStart allows us to mock tor.Start.
	testTorStart func(ctx context.Context, conf *tor.StartConf) (*tor.Tor, error)

	// testTorEnableNetwork allows us to mock tor.EnableNetwork.
	testTorEnableNetwork func(ctx context.Context, tor *tor.Tor, wait bool) error

	// testTorGetInfo allows us to mock getting info from the control port.
	testTorGetInfo func(ctrl *control.Conn, keys ...string) ([]*control.KeyVal, error)
}

var _ Transport = &Tor{}

// NewTor creates a new [Tor] transport.
func NewTor(config Config, options TorOptions, logger model.Logger) *Tor {
	config.Kind = KindTor
	return &Tor{
		config:  config,
		logger:  model.ValidLoggerOrDefault(logger),
		options: options,
	}
}

// Config implements Transport.
func (t *Tor) Config() Config {
	return t.config
}

// torBinaryEnv is the environment variable containing the tor binary.
const torBinaryEnv = "TOR_BINARY"

// torBinary returns the tor binary path. When the binary comes from
// the options or is the default, we use execabs.LookPath to make sure
// we are not executing a binary in the current directory.
func (t *Tor) torBinary() (string, error) {
	if t.options.Binary != "" {
		return t.execabsLookPath(t.options.Binary)
	}
	if binary := os.Getenv(torBinaryEnv); binary != "" {
		return binary, nil
	}
	return t.execabsLookPath("tor")
}

func (t *Tor) execabsLookPath(name string) (string, error) {
	if t.testExecabsLookPath != nil {
		return t.testExecabsLookPath(name)
	}
	return execabs.LookPath(name)
}

func (t *Tor) torStart(ctx context.Context, conf *tor.StartConf) (*tor.Tor, error) {
	if t.testTorStart != nil {
		return t.testTorStart(ctx, conf)
	}
	return tor.Start(ctx, conf)
}

func (t *Tor) torEnableNetwork(ctx context.Context, instance *tor.Tor, wait bool) error {
	if t.testTorEnableNetwork != nil {
		return t.testTorEnableNetwork(ctx, instance, wait)
	}
	return instance.EnableNetwork(ctx, wait)
}

func (t *Tor) torGetInfo(instance *tor.Tor, keys ...string) ([]*control.KeyVal, error) {
	if t.testTorGetInfo != nil {
		return t.testTorGetInfo(instance.Control, keys...)
	}
	if instance.Control == nil {
		return nil, errNoTorControl
	}
	return instance.Control.GetInfo(keys...)
}

// BeginBootstrap implements Transport. Starting tor and waiting for it
// to bootstrap happen in the background: use PollReady to know when tor
// is ready. The tor process only stops when you call Stop.
func (t *Tor) BeginBootstrap(ctx context.Context) (Bootstrap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exePath, err := t.torBinary()
	if err != nil {
		return nil, err
	}
	name := t.config.TransportName()
	t.logger.Infof("%s: exec binary: %s", name, exePath)
	conf := &tor.StartConf{
		ExePath:   exePath,
		DataDir:   t.options.DataDir,
		ExtraArgs: t.options.ExtraArgs,
		NoHush:    true,
	}
	bctx, cancel := context.WithCancel(context.Background())
	b := &torBootstrap{
		cancel:   cancel,
		done:     make(chan any),
		endpoint: t.config.Endpoint,
		latch:    readiness.NewLatch(),
		logger:   t.logger,
		name:     name,
	}
	go b.run(bctx, t, conf)
	return b, nil
}

type torBootstrap struct {
	cancel     context.CancelFunc
	done       chan any
	endpoint   string
	instance   io.Closer
	latch      *readiness.Latch
	logger     model.Logger
	name       string
	once       sync.Once
	socksProxy string
}

func (b *torBootstrap) run(ctx context.Context, t *Tor, conf *tor.StartConf) {
	defer close(b.done)
	instance, err := t.torStart(ctx, conf)
	if err != nil {
		b.latch.Set(readiness.StatusFailed(err))
		return
	}
	b.instance = instance
	b.logger.Infof("%s: enabling the network", b.name)
	if err := t.torEnableNetwork(ctx, instance, true); err != nil {
		b.latch.Set(readiness.StatusFailed(err))
		return
	}
	info, err := t.torGetInfo(instance, "net/listeners/socks")
	if err != nil {
		b.latch.Set(readiness.StatusFailed(err))
		return
	}
	if len(info) != 1 || info[0].Key != "net/listeners/socks" {
		b.latch.Set(readiness.StatusFailed(ErrTorUnableToGetSOCKSProxyAddress))
		return
	}
	proxyAddress := strings.Trim(info[0].Val, `"`)
	if strings.HasPrefix(proxyAddress, "unix:") {
		b.latch.Set(readiness.StatusFailed(ErrTorReturnedUnsupportedProxy))
		return
	}
	b.logger.Infof("%s: socks proxy at %s", b.name, proxyAddress)
	b.socksProxy = proxyAddress // published by the latch
	b.latch.Set(readiness.StatusReady)
}

// PollReady implements Bootstrap.
func (b *torBootstrap) PollReady() readiness.Status {
	return b.latch.PollReady()
}

// Changed implements readiness.Notifier.
func (b *torBootstrap) Changed() <-chan struct{} {
	return b.latch.Changed()
}

// OpenSession implements Bootstrap.
func (b *torBootstrap) OpenSession(ctx context.Context) (net.Conn, error) {
	if b.PollReady().State != readiness.Ready {
		return nil, ErrNotReady
	}
	socks, err := newSOCKS5Dialer(b.socksProxy)
	if err != nil {
		return nil, connectFailed(err)
	}
	dialer := &dialerLogger{Dialer: socks, Logger: b.logger, Transport: b.name}
	conn, err := dialer.DialContext(ctx, "tcp", b.endpoint)
	if err != nil {
		return nil, connectFailed(err)
	}
	return conn, nil
}

// Stop implements Bootstrap.
func (b *torBootstrap) Stop() {
	b.once.Do(func() {
		b.cancel()
		<-b.done
		b.latch.Set(readiness.StatusFailed(net.ErrClosed))
		if b.instance != nil {
			_ = b.instance.Close()
		}
		b.logger.Debugf("%s: tor stopped", b.name)
	})
}
