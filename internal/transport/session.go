package transport

import (
	"net"
	"sync"
)

// Session is a connection to the injector bound to exactly one transport.
// Closing a session closes the connection and then stops the bootstrap
// that created it. A session is owned by one component at a time.
type Session struct {
	net.Conn

	bootstrap Bootstrap
	closeErr  error
	once      sync.Once
	transport string
}

// NewSession creates a new [Session] owning conn and bootstrap.
func NewSession(transport string, conn net.Conn, bootstrap Bootstrap) *Session {
	return &Session{
		Conn:      conn,
		bootstrap: bootstrap,
		transport: transport,
	}
}

// Transport returns the name of the transport that created the session.
func (s *Session) Transport() string {
	return s.transport
}

// Close closes the connection and stops the bootstrap. Calling this
// method more than once returns the result of the first call.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.closeErr = s.Conn.Close()
		if s.bootstrap != nil {
			s.bootstrap.Stop()
		}
	})
	return s.closeErr
}
