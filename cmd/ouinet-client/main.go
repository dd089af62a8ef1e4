// Command ouinet-client runs a local HTTP proxy that relays each request
// to the injector over the first transport that becomes ready.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ouinet-go/ouinet/internal/broker"
	"github.com/ouinet-go/ouinet/internal/client"
	"github.com/ouinet-go/ouinet/internal/config"
	"github.com/ouinet-go/ouinet/internal/logx"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/pidfile"
	"github.com/ouinet-go/ouinet/internal/runtimex"
	"github.com/ouinet-go/ouinet/internal/serverx"
	"github.com/ouinet-go/ouinet/internal/transport"
	"github.com/ouinet-go/ouinet/internal/version"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Options contains the options you can only set from the CLI.
type Options struct {
	Repo string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the root command.
func newRootCommand() *cobra.Command {
	var options Options
	cfg := config.NewClient()
	rootCmd := &cobra.Command{
		Use:          "ouinet-client",
		Short:        "ouinet-client is a proxy relaying requests to the injector",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Version:      version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.Flags(), &options, cfg)
		},
	}
	rootCmd.SetVersionTemplate("{{ .Version }}\n")
	flags := rootCmd.Flags()
	flags.StringVar(&options.Repo, "repo", "", "path to the repo directory (mandatory)")
	runtimex.PanicOnError(rootCmd.MarkFlagRequired("repo"), "MarkFlagRequired")
	cfg.AddFlags(flags)
	return rootCmd
}

// newTransports creates a transport for each configured injector endpoint.
// The order is TCP, overlay, tor and breaks ties in the broker.
func newTransports(cfg *config.Client, logger model.Logger) ([]transport.Transport, error) {
	var out []transport.Transport
	if cfg.InjectorEP != "" {
		out = append(out, transport.NewTCP(transport.Config{
			Endpoint:     cfg.InjectorEP,
			ReadyTimeout: cfg.TCPReadyTimeout.Std(),
		}, logger))
	}
	if cfg.InjectorI2PEP != "" {
		argv, err := config.SplitCommandLine(cfg.I2PRouter)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invalid i2p-router")
		}
		out = append(out, transport.NewOverlay(transport.Config{
			Endpoint:     cfg.InjectorI2PEP,
			ReadyTimeout: cfg.OverlayReadyTimeout.Std(),
		}, transport.OverlayOptions{
			RouterCommand: argv,
			SOCKSProxy:    cfg.I2PSOCKSProxy,
		}, logger))
	}
	if cfg.InjectorTorEP != "" {
		var extraArgs []string
		if cfg.TorArgs != "" {
			args, err := config.SplitCommandLine(cfg.TorArgs)
			if err != nil {
				return nil, pkgerrors.Wrap(err, "invalid tor-args")
			}
			extraArgs = args
		}
		out = append(out, transport.NewTor(transport.Config{
			Endpoint:     cfg.InjectorTorEP,
			ReadyTimeout: cfg.TorReadyTimeout.Std(),
		}, transport.TorOptions{
			Binary:    cfg.TorBinary,
			ExtraArgs: extraArgs,
		}, logger))
	}
	return out, nil
}

// run runs the client until ctx is done.
func run(ctx context.Context, flags *pflag.FlagSet, options *Options, cfg *config.Client) error {
	if err := config.Load(flags, filepath.Join(options.Repo, config.ClientFile), cfg); err != nil {
		return pkgerrors.Wrap(err, "cannot load the configuration")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logx.NewLogger(os.Stderr, cfg.Debug)

	if cfg.OpenFileLimit > 0 {
		if err := config.RaiseOpenFileLimit(cfg.OpenFileLimit); err != nil {
			return pkgerrors.Wrap(err, "cannot set the open file limit")
		}
	}

	pid, err := pidfile.Acquire(options.Repo)
	if err != nil {
		return err
	}
	defer pid.Release()

	transports, err := newTransports(cfg, logger)
	if err != nil {
		return err
	}
	brk := broker.New(logger, transports...)
	for _, tc := range brk.Transports() {
		logger.Infof("transport %s: %s (ready timeout %s)",
			tc.TransportName(), tc.Endpoint, tc.EffectiveReadyTimeout())
	}
	clnt := client.New(logger, brk)
	clnt.FetchTimeout = cfg.FetchTimeout.Std()
	clnt.InjectorCredentials = cfg.InjectorCredentials

	listener, err := net.Listen("tcp", cfg.ListenOnTCP)
	if err != nil {
		return pkgerrors.Wrap(err, "cannot listen")
	}
	logger.Infof("HTTP proxy: %s", listener.Addr().String())
	services := []serverx.Service{{
		Name:     "client proxy",
		Listener: listener,
		Handler:  client.NewProxy(logger, clnt),
	}}
	if cfg.MetricsEndpoint != "" {
		promListener, err := net.Listen("tcp", cfg.MetricsEndpoint)
		if err != nil {
			listener.Close()
			return pkgerrors.Wrap(err, "cannot listen for metrics")
		}
		promMux := http.NewServeMux()
		promMux.Handle("/metrics", promhttp.Handler())
		services = append(services, serverx.Service{
			Name:     "prometheus metrics",
			Listener: promListener,
			Handler:  promMux,
		})
	}
	group := &serverx.Group{Logger: logger}
	return group.Serve(ctx, services...)
}
