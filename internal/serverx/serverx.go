// Package serverx runs HTTP services until the context is done and then
// shuts them down waiting for pending requests to complete.
package serverx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ouinet-go/ouinet/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout is the default time we give pending
// requests to complete when shutting down.
const DefaultShutdownTimeout = 45 * time.Second

// Service is an HTTP handler served on a listener.
type Service struct {
	// Name is the MANDATORY name used in logs.
	Name string

	// Listener is the MANDATORY listener.
	Listener net.Listener

	// Handler is the MANDATORY handler.
	Handler http.Handler
}

// Group serves a set of services.
type Group struct {
	// Logger is the MANDATORY logger.
	Logger model.Logger

	// ShutdownTimeout is the OPTIONAL time we give pending requests
	// when shutting down. When zero, we use [DefaultShutdownTimeout].
	ShutdownTimeout time.Duration
}

// Serve serves each service until ctx is done or a service fails, then
// shuts down all the services. The return value is the first error that
// caused the group to stop, if any, or the error occurred on shutdown.
func (g *Group) Serve(ctx context.Context, services ...Service) error {
	logger := model.ValidLoggerOrDefault(g.Logger)
	eg, ctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		srv := &http.Server{
			Handler:           svc.Handler,
			ReadHeaderTimeout: 30 * time.Second,
		}
		logger.Infof("serving %s at %s", svc.Name, svc.Listener.Addr().String())
		eg.Go(func() error {
			if err := srv.Serve(svc.Listener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			return g.shutdown(logger, svc.Name, srv)
		})
	}
	return eg.Wait()
}

// shutdown shuts down srv waiting for pending requests.
func (g *Group) shutdown(logger model.Logger, name string, srv *http.Server) error {
	timeout := g.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger.Infof("%s: waiting for pending requests to complete", name)
	return srv.Shutdown(ctx)
}
