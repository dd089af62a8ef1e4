// Package relay relays one HTTP request and its response over a session.
//
// The framing is HTTP/1.1: we write the request line with an absolute
// target, the headers and a body with an explicit Content-Length, and we
// read back the status line, the headers and the body, up to the declared
// length or EOF. A session carries exactly one exchange and [Do] always
// closes it. Errors are never retried here: retrying is up to the caller.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/optional"
)

// MaxBodySize is the maximum size of a request or response body.
const MaxBodySize = 64 << 20

// DefaultFetchTimeout is the default time budget for fetching a resource.
const DefaultFetchTimeout = 8 * time.Minute

// ErrBodyTooLarge indicates that a body exceeds [MaxBodySize].
var ErrBodyTooLarge = errors.New("relay: body too large")

// Exchange is a request to relay along with the expected response shape.
type Exchange struct {
	// Request is the MANDATORY request to relay. The URL must be absolute.
	Request *http.Request

	// ExpectedBodyLength is the OPTIONAL expected length of the response
	// body. When set, a response with a different length is rejected.
	ExpectedBodyLength optional.Value[int64]

	// Credentials is the OPTIONAL "<username>:<password>" pair sent
	// to the injector in the Proxy-Authorization header.
	Credentials string
}

// Response is a response read from a session.
type Response struct {
	// StatusCode is the status code (e.g., 200).
	StatusCode int

	// Status is the status line without the protocol (e.g., "200 OK").
	Status string

	// Header contains the end-to-end response headers.
	Header http.Header

	// Body is the whole response body.
	Body []byte
}

// transportNamer is implemented by transport.Session.
type transportNamer interface {
	Transport() string
}

// Do writes the exchange request on sess, reads the response and validates
// it. The session is closed when Do returns. When the context is done before
// the exchange completes, we close the session to interrupt pending I/O.
//
// Session I/O errors are [errorsx.ErrTransportBroken] and a body whose
// length differs from the expected one is [errorsx.ErrResponseShapeMismatch].
// Both are wrapped in an *errorsx.ErrWrapper. Failing to read the request body is
// a local error, returned before writing anything on sess. We never return
// a response along with an error.
func Do(ctx context.Context, logger model.Logger, sess net.Conn, exchange *Exchange) (*Response, error) {
	logger = model.ValidLoggerOrDefault(logger)
	defer sess.Close()
	stop := context.AfterFunc(ctx, func() {
		sess.Close()
	})
	defer stop()

	var transport string
	if tn, ok := sess.(transportNamer); ok {
		transport = tn.Transport()
	}
	// reading the caller's body is not session I/O
	req, err := prepareRequest(exchange.Request, exchange.Credentials)
	if err != nil {
		return nil, fmt.Errorf("relay: cannot read the request body: %w", err)
	}
	logger.Debugf("relay: %s %s over %s...", req.Method, req.URL.String(), transport)
	start := time.Now()
	resp, err := roundTrip(sess, req)
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		logger.Debugf("relay: %s %s over %s... %s in %s", req.Method, req.URL.String(),
			transport, err.Error(), elapsed)
		return nil, errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.StageRelay,
			transport, errorsx.ErrTransportBroken, err)
	}
	logger.Debugf("relay: %s %s over %s... %d with %d bytes in %s", req.Method, req.URL.String(),
		transport, resp.StatusCode, len(resp.Body), elapsed)
	if err := checkShape(exchange, resp); err != nil {
		logger.Warnf("relay: %s", err.Error())
		return nil, errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.StageRelay,
			transport, errorsx.ErrResponseShapeMismatch, err)
	}
	return resp, nil
}

// checkShape checks the response against the expected shape.
func checkShape(exchange *Exchange, resp *Response) error {
	if exchange.ExpectedBodyLength.IsNone() {
		return nil
	}
	expected, got := exchange.ExpectedBodyLength.Unwrap(), int64(len(resp.Body))
	if expected != got {
		return fmt.Errorf("%w: expected %d body bytes, got %d",
			errorsx.ErrResponseShapeMismatch, expected, got)
	}
	return nil
}

// roundTrip writes the request and reads the response.
func roundTrip(conn net.Conn, req *http.Request) (*Response, error) {
	bw := bufio.NewWriter(conn)
	if err := req.WriteProxy(bw); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	return ReadResponse(bufio.NewReader(conn), req)
}

// prepareRequest returns a copy of the request whose body is buffered,
// such that we send an explicit Content-Length, and without hop-by-hop
// headers except our own credentials. We also ask the injector to close
// the connection.
func prepareRequest(orig *http.Request, credentials string) (*http.Request, error) {
	req := orig.Clone(orig.Context())
	var body []byte
	if orig.Body != nil && orig.Body != http.NoBody {
		var err error
		body, err = readBody(orig.Body)
		orig.Body.Close()
		if err != nil {
			return nil, err
		}
	}
	req.ContentLength = int64(len(body))
	req.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) <= 0 {
		req.Body = http.NoBody
	}
	req.TransferEncoding = nil
	RemoveHopByHopHeaders(req.Header)
	if credentials != "" {
		req.Header.Set("Proxy-Authorization", ProxyAuthorization(credentials))
	}
	req.Close = true
	return req, nil
}

// ReadResponse reads a whole response from r. The request, if not nil,
// tells us whether a response to a HEAD request has no body.
func ReadResponse(r *bufio.Reader, req *http.Request) (*Response, error) {
	resp, err := http.ReadResponse(r, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	RemoveHopByHopHeaders(resp.Header)
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// readBody reads a body of at most MaxBodySize bytes.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}
