// Command ouinet-injector serves ouinet clients by fetching the resources
// they request from the origin.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ouinet-go/ouinet/internal/config"
	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/identity"
	"github.com/ouinet-go/ouinet/internal/injector"
	"github.com/ouinet-go/ouinet/internal/kvstore"
	"github.com/ouinet-go/ouinet/internal/logx"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/pidfile"
	"github.com/ouinet-go/ouinet/internal/runtimex"
	"github.com/ouinet-go/ouinet/internal/serverx"
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
	cfg := config.NewInjector()
	rootCmd := &cobra.Command{
		Use:          "ouinet-injector",
		Short:        "ouinet-injector serves ouinet clients",
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
	rootCmd.PersistentFlags().StringVar(&options.Repo, "repo", "", "path to the repo directory (mandatory)")
	runtimex.PanicOnError(rootCmd.MarkPersistentFlagRequired("repo"), "MarkPersistentFlagRequired")
	cfg.AddFlags(rootCmd.Flags())
	registerImportIdentity(rootCmd, &options)
	return rootCmd
}

// registerImportIdentity registers the import-identity subcommand.
func registerImportIdentity(rootCmd *cobra.Command, options *Options) {
	subCmd := &cobra.Command{
		Use:   "import-identity {naming|overlay} FILE",
		Short: "Imports an identity into the repo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[1])
			if err != nil {
				return pkgerrors.Wrap(err, "cannot read the identity")
			}
			store, err := openIdentityStore(options.Repo)
			if err != nil {
				return err
			}
			id, err := store.Provision(identity.Kind(args[0]), blob)
			if err != nil {
				return pkgerrors.Wrap(identityError(err), "cannot import the identity")
			}
			logx.NewLogger(cmd.ErrOrStderr(), false).Infof("imported identity: %s", id.String())
			return nil
		},
	}
	rootCmd.AddCommand(subCmd)
}

// openIdentityStore opens the identity store inside the repo.
func openIdentityStore(repo string) (*identity.Store, error) {
	kvs, err := kvstore.NewFS(filepath.Join(repo, "identity"))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot open the identity store")
	}
	return identity.NewStore(kvs), nil
}

// loadCredentials loads the identities, generating the naming identity
// on the first run. A missing overlay identity is fatal.
func loadCredentials(logger model.Logger, store *identity.Store, withOverlay bool) (*identity.Credentials, error) {
	if _, err := store.Load(identity.Naming); errors.Is(err, errorsx.ErrIdentityMissing) {
		logger.Infof("generating the naming identity")
		blob, err := identity.GenerateNaming()
		if err != nil {
			return nil, err
		}
		if _, err := store.Provision(identity.Naming, blob); err != nil {
			return nil, identityError(err)
		}
	}
	creds, err := store.LoadCredentials(withOverlay)
	if err != nil {
		return nil, identityError(err)
	}
	return creds, nil
}

// identityError tags a missing or corrupt identity with errorsx.StageIdentity.
func identityError(err error) error {
	for _, kind := range []error{errorsx.ErrIdentityMissing, errorsx.ErrIdentityCorrupt} {
		if errors.Is(err, kind) {
			return errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.StageIdentity, "", kind, err)
		}
	}
	return err
}

// run runs the injector until ctx is done.
func run(ctx context.Context, flags *pflag.FlagSet, options *Options, cfg *config.Injector) error {
	if err := config.Load(flags, filepath.Join(options.Repo, config.InjectorFile), cfg); err != nil {
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

	store, err := openIdentityStore(options.Repo)
	if err != nil {
		return err
	}
	creds, err := loadCredentials(logger, store, cfg.ListenOnI2P)
	if err != nil {
		return pkgerrors.Wrap(err, "cannot load the identities")
	}

	listener, err := net.Listen("tcp", cfg.ListenOnTCP)
	if err != nil {
		return pkgerrors.Wrap(err, "cannot listen")
	}
	if err := injector.PublishState(options.Repo, creds, listener.Addr().String()); err != nil {
		listener.Close()
		return pkgerrors.Wrap(err, "cannot write the state files")
	}
	logger.Infof("TCP address: %s", listener.Addr().String())
	logger.Infof("IPNS ID: %s", creds.Naming.Advertised())
	if creds.Overlay != nil {
		logger.Infof("I2P public ID: %s", creds.Overlay.PublicID())
		logger.Infof("I2P address: %s", creds.Overlay.Advertised())
	}

	handler := injector.NewHandler(logger)
	handler.AllowLoopback = cfg.AllowLoopback
	handler.Credentials = cfg.Credentials
	if cfg.FetchTimeout > 0 {
		handler.FetchTimeout = cfg.FetchTimeout.Std()
	}
	services := []serverx.Service{{
		Name:     "injector",
		Listener: listener,
		Handler:  handler,
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
