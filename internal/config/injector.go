package config

import (
	"errors"

	"github.com/spf13/pflag"
)

// ErrNoListener indicates that the injector would not listen anywhere.
var ErrNoListener = errors.New("config: the injector must listen on TCP or on the overlay")

// Injector is the injector configuration.
type Injector struct {
	// AllowLoopback allows fetching from loopback targets.
	AllowLoopback bool `toml:"allow-loopback"`

	// Credentials is the "<username>:<password>" pair clients must
	// send. When empty, we do not require authentication.
	Credentials string `toml:"credentials"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`

	// FetchTimeout is the time budget for fetching from the origin.
	FetchTimeout Duration `toml:"fetch-timeout"`

	// ListenOnI2P enables serving through the overlay. The overlay
	// router forwards its server tunnel to ListenOnTCP.
	ListenOnI2P bool `toml:"listen-on-i2p"`

	// ListenOnTCP is the TCP endpoint where we serve clients.
	ListenOnTCP string `toml:"listen-on-tcp"`

	// MetricsEndpoint is the endpoint where we serve prometheus
	// metrics. When empty, we do not serve metrics.
	MetricsEndpoint string `toml:"metrics-endpoint"`

	// OpenFileLimit is the RLIMIT_NOFILE to set. Zero means unchanged.
	OpenFileLimit uint64 `toml:"open-file-limit"`
}

// NewInjector returns the default injector configuration.
func NewInjector() *Injector {
	return &Injector{
		ListenOnTCP: "0.0.0.0:7070",
	}
}

// AddFlags registers the command line flags overriding c.
func (c *Injector) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&c.AllowLoopback, "allow-loopback", c.AllowLoopback, "allow fetching from loopback targets")
	flags.StringVar(&c.Credentials, "credentials", c.Credentials,
		"<username>:<password> pair clients must send")
	flags.BoolVarP(&c.Debug, "debug", "v", c.Debug, "enable debug logging")
	flags.Var(&c.FetchTimeout, "fetch-timeout", "time budget for fetching from the origin (default 8m)")
	flags.BoolVar(&c.ListenOnI2P, "listen-on-i2p", c.ListenOnI2P, "serve clients through the overlay")
	flags.StringVar(&c.ListenOnTCP, "listen-on-tcp", c.ListenOnTCP, "TCP endpoint where to serve clients")
	flags.StringVar(&c.MetricsEndpoint, "metrics-endpoint", c.MetricsEndpoint, "endpoint where to serve prometheus metrics")
	flags.Uint64Var(&c.OpenFileLimit, "open-file-limit", c.OpenFileLimit, "maximum number of open files")
}

// Validate checks whether the configuration is usable.
func (c *Injector) Validate() error {
	if c.ListenOnTCP == "" {
		return ErrNoListener
	}
	return validateCredentials(c.Credentials)
}
