package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/readiness"
)

// routerScript returns the argv of a fake router running script.
func routerScript(script string) []string {
	return []string{"sh", "-c", script}
}

func TestResolveOverlayEndpoint(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "identity", "testdata", "overlay-public-id"))
	if err != nil {
		t.Fatal(err)
	}
	publicID := strings.TrimSpace(string(data))

	type testcase struct {
		input  string
		expect string
		fails  bool
	}
	cases := []testcase{{
		input:  "injector.b32.i2p:80",
		expect: "injector.b32.i2p:80",
	}, {
		input:  "injector.b32.i2p",
		expect: "injector.b32.i2p:7070",
	}, {
		input:  publicID,
		expect: "kidqdjmkroa3w3vkuvko4fztmtyzecokmykqrctwg2ham4cc2fxa.b32.i2p:7070",
	}, {
		input: "example.com:443",
		fails: true,
	}, {
		input: "",
		fails: true,
	}}
	for _, tc := range cases {
		got, err := ResolveOverlayEndpoint(tc.input)
		if tc.fails {
			if !errors.Is(err, errorsx.ErrIdentityCorrupt) {
				t.Fatal("for", tc.input, "not the error we expected", err)
			}
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.expect {
			t.Fatal("for", tc.input, "expected", tc.expect, "got", got)
		}
	}
}

func TestOverlay(t *testing.T) {
	t.Run("becomes ready after the marker and opens sessions through the proxy", func(t *testing.T) {
		backend := startGreeter(t, "hello from the injector")
		_, port, err := net.SplitHostPort(backend)
		if err != nil {
			t.Fatal(err)
		}
		txp := NewOverlay(Config{
			Endpoint: net.JoinHostPort("injector.b32.i2p", port),
		}, OverlayOptions{
			RouterCommand: routerScript(
				"echo starting; sleep 0.1; echo 'I2P Tunnel has been established'; exec sleep 30"),
			SOCKSProxy: startSOCKS5(t),
		}, model.DiscardLogger)
		if txp.Config().Kind != KindOverlay {
			t.Fatal("unexpected kind")
		}
		b, err := txp.BeginBootstrap(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer b.Stop()
		if _, err := b.OpenSession(context.Background()); !errors.Is(err, ErrNotReady) {
			t.Fatal("expected ErrNotReady before the marker", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		outcome := readiness.Watch(ctx, b, 10*time.Millisecond)
		if outcome.State != readiness.Ready {
			t.Fatal("unexpected outcome", outcome)
		}
		conn, err := b.OpenSession(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got := readAll(t, conn); got != "hello from the injector" {
			t.Fatal("unexpected greeting", got)
		}
	})

	t.Run("the marker on stderr also counts", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: routerScript("echo 'I2P Tunnel has been established' 1>&2; exec sleep 30"),
		}, model.DiscardLogger)
		b, err := txp.BeginBootstrap(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer b.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if outcome := readiness.Watch(ctx, b, 10*time.Millisecond); outcome.State != readiness.Ready {
			t.Fatal("unexpected outcome", outcome)
		}
	})

	t.Run("fails when the router exits without the marker", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: routerScript("echo 'cannot bind'; exit 3"),
		}, model.DiscardLogger)
		b, err := txp.BeginBootstrap(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer b.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		outcome := readiness.Watch(ctx, b, 10*time.Millisecond)
		if outcome.State != readiness.Failed {
			t.Fatal("unexpected outcome", outcome)
		}
		if !strings.Contains(outcome.Reason.Error(), "exit status 3") {
			t.Fatal("unexpected reason", outcome.Reason)
		}
	})

	t.Run("fails when the router exits cleanly without the marker", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: routerScript("echo 'shutting down'"),
		}, model.DiscardLogger)
		b, err := txp.BeginBootstrap(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer b.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		outcome := readiness.Watch(ctx, b, 10*time.Millisecond)
		if outcome.State != readiness.Failed || !errors.Is(outcome.Reason, readiness.ErrMarkerNotFound) {
			t.Fatal("unexpected outcome", outcome)
		}
	})

	t.Run("times out and Stop kills a silent router", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand:   routerScript("trap '' INT; exec sleep 30"),
			StopGracePeriod: 50 * time.Millisecond,
		}, model.DiscardLogger)
		b, err := txp.BeginBootstrap(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if outcome := readiness.Watch(ctx, b, 10*time.Millisecond); outcome.State != readiness.TimedOut {
			t.Fatal("unexpected outcome", outcome)
		}
		t0 := time.Now()
		b.Stop()
		b.Stop() // idempotent
		if elapsed := time.Since(t0); elapsed > 5*time.Second {
			t.Fatal("Stop took too much time", elapsed)
		}
		if b.PollReady().State != readiness.Failed {
			t.Fatal("a stopped router should not be pending")
		}
	})

	t.Run("cannot connect when the proxy is not running", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: routerScript("echo 'I2P Tunnel has been established'; exec sleep 30"),
			SOCKSProxy:    closedEndpoint(t),
		}, model.DiscardLogger)
		b, err := txp.BeginBootstrap(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		defer b.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if outcome := readiness.Watch(ctx, b, 10*time.Millisecond); outcome.State != readiness.Ready {
			t.Fatal("unexpected outcome", outcome)
		}
		if _, err := b.OpenSession(context.Background()); !errors.Is(err, errorsx.ErrConnectFailed) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("with an empty router command", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{}, nil)
		if _, err := txp.BeginBootstrap(context.Background()); !errors.Is(err, ErrEmptyRouterCommand) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("with a nonexistent router", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: []string{"/nonexistent/directory/i2pd"},
		}, nil)
		if _, err := txp.BeginBootstrap(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("with an invalid endpoint", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "example.com:80"}, OverlayOptions{
			RouterCommand: routerScript("exit 0"),
		}, nil)
		if _, err := txp.BeginBootstrap(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("with an invalid marker", func(t *testing.T) {
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: routerScript("exit 0"),
			Marker:        "[",
		}, nil)
		if _, err := txp.BeginBootstrap(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("with a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		txp := NewOverlay(Config{Endpoint: "injector.b32.i2p"}, OverlayOptions{
			RouterCommand: routerScript("exit 0"),
		}, nil)
		if _, err := txp.BeginBootstrap(ctx); !errors.Is(err, context.Canceled) {
			t.Fatal("not the error we expected", err)
		}
	})
}
