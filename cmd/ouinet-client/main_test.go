package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ouinet-go/ouinet/internal/config"
	"github.com/ouinet-go/ouinet/internal/injector"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/transport"
	"github.com/ouinet-go/ouinet/internal/version"
	"github.com/spf13/pflag"
)

func newTestFlags(t *testing.T, cfg *config.Client, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("ouinet-client", pflag.ContinueOnError)
	cfg.AddFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	return flags
}

// freeEndpoint returns a loopback endpoint nobody is listening on.
func freeEndpoint(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	endpoint := listener.Addr().String()
	listener.Close()
	return endpoint
}

// waitForListener waits until something accepts connections at endpoint.
func waitForListener(t *testing.T, endpoint string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", endpoint)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("nobody listening at", endpoint)
}

func TestRun(t *testing.T) {
	t.Run("relays requests through the injector", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("hello"))
		}))
		defer origin.Close()
		handler := injector.NewHandler(model.DiscardLogger)
		handler.AllowLoopback = true
		inj := httptest.NewServer(handler)
		defer inj.Close()

		proxyEndpoint := freeEndpoint(t)
		cfg := config.NewClient()
		flags := newTestFlags(t, cfg,
			"--injector-ep", inj.Listener.Addr().String(),
			"--listen-on-tcp", proxyEndpoint,
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() {
			done <- run(ctx, flags, &Options{Repo: t.TempDir()}, cfg)
		}()
		waitForListener(t, proxyEndpoint)

		proxyURL := &url.URL{Scheme: "http", Host: proxyEndpoint}
		clnt := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
		resp, err := clnt.Get(origin.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 200 || string(body) != "hello" {
			t.Fatal("unexpected response", resp.StatusCode, string(body))
		}
		if resp.Header.Get(injector.InjectionIDHeader) == "" {
			t.Fatal("missing injection ID")
		}
		clnt.CloseIdleConnections()

		cancel()
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	})

	t.Run("we authenticate with the injector", func(t *testing.T) {
		origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("hello"))
		}))
		defer origin.Close()
		handler := injector.NewHandler(model.DiscardLogger)
		handler.AllowLoopback = true
		handler.Credentials = "user:pass"
		inj := httptest.NewServer(handler)
		defer inj.Close()

		for _, credentials := range []string{"user:pass", "user:wrong"} {
			proxyEndpoint := freeEndpoint(t)
			cfg := config.NewClient()
			flags := newTestFlags(t, cfg,
				"--injector-ep", inj.Listener.Addr().String(),
				"--injector-credentials", credentials,
				"--listen-on-tcp", proxyEndpoint,
			)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- run(ctx, flags, &Options{Repo: t.TempDir()}, cfg)
			}()
			waitForListener(t, proxyEndpoint)

			proxyURL := &url.URL{Scheme: "http", Host: proxyEndpoint}
			clnt := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
			resp, err := clnt.Get(origin.URL + "/")
			if err != nil {
				cancel()
				t.Fatal(err)
			}
			resp.Body.Close()
			clnt.CloseIdleConnections()
			expected := http.StatusOK
			if credentials == "user:wrong" {
				expected = http.StatusProxyAuthRequired
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != expected {
				t.Fatal("unexpected status code", credentials, resp.StatusCode)
			}
		}
	})

	t.Run("without injector endpoints", func(t *testing.T) {
		cfg := config.NewClient()
		flags := newTestFlags(t, cfg)
		err := run(context.Background(), flags, &Options{Repo: t.TempDir()}, cfg)
		if !errors.Is(err, config.ErrNoInjectorEndpoint) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("when we cannot listen", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer listener.Close()
		cfg := config.NewClient()
		flags := newTestFlags(t, cfg,
			"--injector-ep", "127.0.0.1:7070",
			"--listen-on-tcp", listener.Addr().String(),
		)
		if err := run(context.Background(), flags, &Options{Repo: t.TempDir()}, cfg); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestNewTransports(t *testing.T) {
	t.Run("with all the endpoints", func(t *testing.T) {
		cfg := config.NewClient()
		cfg.InjectorEP = "192.0.2.1:7070"
		cfg.InjectorI2PEP = "example.b32.i2p"
		cfg.I2PRouter = `i2pd --loglevel info --datadir "/var/lib/i2pd data"`
		cfg.InjectorTorEP = "192.0.2.2:7070"
		cfg.TorArgs = "UseBridges 1"
		cfg.TCPReadyTimeout = config.Duration(3 * time.Second)
		transports, err := newTransports(cfg, model.DiscardLogger)
		if err != nil {
			t.Fatal(err)
		}
		var kinds []transport.Kind
		for _, tr := range transports {
			kinds = append(kinds, tr.Config().Kind)
		}
		expected := []transport.Kind{transport.KindTCP, transport.KindOverlay, transport.KindTor}
		if diff := cmp.Diff(expected, kinds); diff != "" {
			t.Fatal(diff)
		}
		if transports[0].Config().EffectiveReadyTimeout() != 3*time.Second {
			t.Fatal("unexpected TCP ready timeout", transports[0].Config().EffectiveReadyTimeout())
		}
	})

	t.Run("with an invalid router command line", func(t *testing.T) {
		cfg := config.NewClient()
		cfg.InjectorI2PEP = "example.b32.i2p"
		cfg.I2PRouter = "   "
		if _, err := newTransports(cfg, model.DiscardLogger); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("with only tcp", func(t *testing.T) {
		cfg := config.NewClient()
		cfg.InjectorEP = "192.0.2.1:7070"
		transports, err := newTransports(cfg, model.DiscardLogger)
		if err != nil {
			t.Fatal(err)
		}
		if len(transports) != 1 {
			t.Fatal("unexpected number of transports", len(transports))
		}
	})
}

func TestVersion(t *testing.T) {
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != version.Version {
		t.Fatal("unexpected version", out.String())
	}
}
