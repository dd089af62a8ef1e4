package transport

import (
	"context"
	"io"
	"log"
	"net"
	"testing"

	"github.com/armon/go-socks5"
)

// startGreeter starts a TCP server that writes greeting to each client
// and returns its endpoint.
func startGreeter(t *testing.T, greeting string) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Write([]byte(greeting))
			conn.Close()
		}
	}()
	return listener.Addr().String()
}

// loopbackResolver resolves every name to the loopback address, so
// that we can pretend to reach overlay addresses.
type loopbackResolver struct{}

func (loopbackResolver) Resolve(ctx context.Context, name string) (context.Context, net.IP, error) {
	return ctx, net.IPv4(127, 0, 0, 1), nil
}

// startSOCKS5 starts a fake overlay SOCKS5 proxy and returns its endpoint.
func startSOCKS5(t *testing.T) string {
	t.Helper()
	server, err := socks5.New(&socks5.Config{
		Resolver: loopbackResolver{},
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })
	go server.Serve(listener)
	return listener.Addr().String()
}

// closedEndpoint returns an endpoint where nobody is listening.
func closedEndpoint(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	endpoint := listener.Addr().String()
	listener.Close()
	return endpoint
}

// readAll reads everything from conn and closes it.
func readAll(t *testing.T, conn net.Conn) string {
	t.Helper()
	defer conn.Close()
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
