package config

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
)

// ErrNoInjectorEndpoint indicates that the client configuration does
// not contain any way to reach the injector.
var ErrNoInjectorEndpoint = errors.New("config: no injector endpoint configured")

// ErrNoOverlayRouter indicates that the overlay transport is configured
// without the command to run the overlay router.
var ErrNoOverlayRouter = errors.New("config: injector-i2p-ep requires i2p-router")

// ErrInvalidCredentials indicates credentials not in the
// "<username>:<password>" format.
var ErrInvalidCredentials = errors.New("config: credentials must be in the <username>:<password> format")

// Client is the client configuration.
type Client struct {
	// Debug enables debug logging.
	Debug bool `toml:"debug"`

	// FetchTimeout is the time budget for relaying an exchange.
	FetchTimeout Duration `toml:"fetch-timeout"`

	// InjectorCredentials is the "<username>:<password>" pair we
	// send to the injector. When empty, we do not authenticate.
	InjectorCredentials string `toml:"injector-credentials"`

	// InjectorEP is the injector TCP endpoint.
	InjectorEP string `toml:"injector-ep"`

	// InjectorI2PEP is the injector overlay endpoint: a ".i2p"
	// address or the injector's public overlay identity.
	InjectorI2PEP string `toml:"injector-i2p-ep"`

	// InjectorTorEP is the injector endpoint reachable through Tor.
	InjectorTorEP string `toml:"injector-tor-ep"`

	// I2PRouter is the command line of the overlay router.
	I2PRouter string `toml:"i2p-router"`

	// I2PSOCKSProxy is the endpoint of the router's SOCKS5 proxy.
	I2PSOCKSProxy string `toml:"i2p-socks-proxy"`

	// ListenOnTCP is the endpoint of the local HTTP proxy.
	ListenOnTCP string `toml:"listen-on-tcp"`

	// MetricsEndpoint is the endpoint where we serve prometheus
	// metrics. When empty, we do not serve metrics.
	MetricsEndpoint string `toml:"metrics-endpoint"`

	// OpenFileLimit is the RLIMIT_NOFILE to set. Zero means unchanged.
	OpenFileLimit uint64 `toml:"open-file-limit"`

	// OverlayReadyTimeout is the bootstrap deadline of the overlay.
	OverlayReadyTimeout Duration `toml:"overlay-ready-timeout"`

	// TCPReadyTimeout is the bootstrap deadline of the TCP transport.
	TCPReadyTimeout Duration `toml:"tcp-ready-timeout"`

	// TorArgs contains extra command line arguments for tor.
	TorArgs string `toml:"tor-args"`

	// TorBinary is the tor binary to use.
	TorBinary string `toml:"tor-binary"`

	// TorReadyTimeout is the bootstrap deadline of the Tor transport.
	TorReadyTimeout Duration `toml:"tor-ready-timeout"`
}

// NewClient returns the default client configuration.
func NewClient() *Client {
	return &Client{
		I2PSOCKSProxy: "127.0.0.1:4447",
		ListenOnTCP:   "127.0.0.1:8077",
	}
}

// AddFlags registers the command line flags overriding c.
func (c *Client) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&c.Debug, "debug", "v", c.Debug, "enable debug logging")
	flags.Var(&c.FetchTimeout, "fetch-timeout", "time budget for relaying a request (default 8m)")
	flags.StringVar(&c.InjectorCredentials, "injector-credentials", c.InjectorCredentials,
		"<username>:<password> authentication pair for the injector")
	flags.StringVar(&c.InjectorEP, "injector-ep", c.InjectorEP, "injector TCP endpoint")
	flags.StringVar(&c.InjectorI2PEP, "injector-i2p-ep", c.InjectorI2PEP,
		"injector overlay endpoint (.i2p address or public overlay identity)")
	flags.StringVar(&c.InjectorTorEP, "injector-tor-ep", c.InjectorTorEP, "injector endpoint reachable over tor")
	flags.StringVar(&c.I2PRouter, "i2p-router", c.I2PRouter, "command line of the overlay router")
	flags.StringVar(&c.I2PSOCKSProxy, "i2p-socks-proxy", c.I2PSOCKSProxy, "SOCKS5 endpoint of the overlay router")
	flags.StringVar(&c.ListenOnTCP, "listen-on-tcp", c.ListenOnTCP, "endpoint of the local HTTP proxy")
	flags.StringVar(&c.MetricsEndpoint, "metrics-endpoint", c.MetricsEndpoint, "endpoint where to serve prometheus metrics")
	flags.Uint64Var(&c.OpenFileLimit, "open-file-limit", c.OpenFileLimit, "maximum number of open files")
	flags.Var(&c.OverlayReadyTimeout, "overlay-ready-timeout", "overlay bootstrap deadline (default 10m)")
	flags.Var(&c.TCPReadyTimeout, "tcp-ready-timeout", "TCP bootstrap deadline (default 15s)")
	flags.StringVar(&c.TorArgs, "tor-args", c.TorArgs, "extra command line arguments for tor")
	flags.StringVar(&c.TorBinary, "tor-binary", c.TorBinary, "tor binary to use")
	flags.Var(&c.TorReadyTimeout, "tor-ready-timeout", "tor bootstrap deadline (default 10m)")
}

// Validate checks whether the configuration is usable.
func (c *Client) Validate() error {
	if c.InjectorEP == "" && c.InjectorI2PEP == "" && c.InjectorTorEP == "" {
		return ErrNoInjectorEndpoint
	}
	if c.InjectorI2PEP != "" && c.I2PRouter == "" {
		return ErrNoOverlayRouter
	}
	return validateCredentials(c.InjectorCredentials)
}

// validateCredentials checks the format of optional credentials.
func validateCredentials(credentials string) error {
	if credentials != "" && !strings.Contains(credentials, ":") {
		return ErrInvalidCredentials
	}
	return nil
}
