package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ouinet-go/ouinet/internal/identity"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/readiness"
	"golang.org/x/sys/execabs"
)

// DefaultOverlayPort is the port we use when the overlay endpoint
// does not specify one.
const DefaultOverlayPort = "7070"

// DefaultStopGracePeriod is the time we give the router to exit after
// we have asked it to before killing it.
const DefaultStopGracePeriod = 300 * time.Millisecond

// ErrEmptyRouterCommand indicates that the router command is empty.
var ErrEmptyRouterCommand = errors.New("transport: empty overlay router command")

// OverlayOptions contains the options of the [Overlay] transport.
type OverlayOptions struct {
	// RouterCommand is the MANDATORY argv of the router. We resolve
	// the first element using execabs.LookPath.
	RouterCommand []string

	// SOCKSProxy is the MANDATORY "host:port" of the SOCKS5
	// proxy exposed by the router.
	SOCKSProxy string

	// Marker is the OPTIONAL readiness marker. When empty, we
	// use readiness.DefaultOverlayMarker.
	Marker string

	// StopGracePeriod is the OPTIONAL grace period. When zero, we
	// use [DefaultStopGracePeriod].
	StopGracePeriod time.Duration
}

// Overlay is the I2P overlay transport. Bootstrapping runs the router
// as an external process and scans its output for the readiness marker.
// Sessions are opened through the router's SOCKS5 proxy.
type Overlay struct {
	config  Config
	logger  model.Logger
	options OverlayOptions
}

var _ Transport = &Overlay{}

// NewOverlay creates a new [Overlay] transport.
func NewOverlay(config Config, options OverlayOptions, logger model.Logger) *Overlay {
	config.Kind = KindOverlay
	return &Overlay{
		config:  config,
		logger:  model.ValidLoggerOrDefault(logger),
		options: options,
	}
}

// Config implements Transport.
func (t *Overlay) Config() Config {
	return t.config
}

// BeginBootstrap implements Transport. The router process outlives the
// context: it only stops when you call Stop.
func (t *Overlay) BeginBootstrap(ctx context.Context) (Bootstrap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.options.RouterCommand) <= 0 {
		return nil, ErrEmptyRouterCommand
	}
	endpoint, err := ResolveOverlayEndpoint(t.config.Endpoint)
	if err != nil {
		return nil, err
	}
	marker := t.options.Marker
	if marker == "" {
		marker = readiness.DefaultOverlayMarker
	}
	name := t.config.TransportName()
	scanner, err := readiness.NewMarkerScanner(marker, model.NewPrefixLogger(name+": router: ", t.logger))
	if err != nil {
		return nil, err
	}
	exePath, err := execabs.LookPath(t.options.RouterCommand[0])
	if err != nil {
		return nil, err
	}
	grace := t.options.StopGracePeriod
	if grace <= 0 {
		grace = DefaultStopGracePeriod
	}
	cmd := execabs.Command(exePath, t.options.RouterCommand[1:]...)
	cmd.Stdout = scanner.NewStream()
	cmd.Stderr = scanner.NewStream()
	// do not wait forever for children inheriting the output pipes
	cmd.WaitDelay = grace
	t.logger.Infof("%s: + %s", name, cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	b := &overlayBootstrap{
		endpoint:   endpoint,
		exited:     make(chan any),
		grace:      grace,
		logger:     t.logger,
		name:       name,
		process:    cmd.Process,
		scanner:    scanner,
		socksProxy: t.options.SOCKSProxy,
	}
	go b.supervise(cmd)
	return b, nil
}

// ResolveOverlayEndpoint returns the "<name>.i2p:port" address to dial
// through the router's SOCKS5 proxy. The endpoint is either a ".i2p"
// address, optionally with port, or a base64 public overlay identity.
func ResolveOverlayEndpoint(endpoint string) (string, error) {
	if host, _, err := net.SplitHostPort(endpoint); err == nil && strings.HasSuffix(host, ".i2p") {
		return endpoint, nil
	}
	if strings.HasSuffix(endpoint, ".i2p") {
		return net.JoinHostPort(endpoint, DefaultOverlayPort), nil
	}
	address, err := identity.ParseOverlayPublicID(endpoint)
	if err != nil {
		return "", fmt.Errorf("transport: invalid overlay endpoint: %w", err)
	}
	return net.JoinHostPort(address, DefaultOverlayPort), nil
}

type overlayBootstrap struct {
	endpoint   string
	exited     chan any
	grace      time.Duration
	logger     model.Logger
	name       string
	once       sync.Once
	process    *os.Process
	scanner    *readiness.MarkerScanner
	socksProxy string
}

// supervise scans the router output and reaps the process. A router
// that exits before printing the marker means the bootstrap failed.
func (b *overlayBootstrap) supervise(cmd *execabs.Cmd) {
	err := cmd.Wait()
	b.logger.Infof("%s: router exited: %s", b.name, model.ErrorToStringOrOK(err))
	b.scanner.Fail(fmt.Errorf("router exited: %w", errOrMarkerNotFound(err)))
	close(b.exited)
}

func errOrMarkerNotFound(err error) error {
	if err != nil {
		return err
	}
	return readiness.ErrMarkerNotFound
}

// PollReady implements Bootstrap.
func (b *overlayBootstrap) PollReady() readiness.Status {
	return b.scanner.PollReady()
}

// Changed implements readiness.Notifier.
func (b *overlayBootstrap) Changed() <-chan struct{} {
	return b.scanner.Changed()
}

// OpenSession implements Bootstrap.
func (b *overlayBootstrap) OpenSession(ctx context.Context) (net.Conn, error) {
	if b.PollReady().State != readiness.Ready {
		return nil, ErrNotReady
	}
	select {
	case <-b.exited:
		return nil, connectFailed(errors.New("router is not running"))
	default:
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

// Stop implements Bootstrap. We ask the router to exit, then kill it
// after the grace period, and always reap it.
func (b *overlayBootstrap) Stop() {
	b.once.Do(func() {
		_ = b.process.Signal(os.Interrupt)
		select {
		case <-b.exited:
		case <-time.After(b.grace):
			_ = b.process.Kill()
			<-b.exited
		}
		b.logger.Debugf("%s: router stopped", b.name)
	})
}
