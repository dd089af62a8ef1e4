// Package injector implements the injector, which serves the requests
// that clients relay over a session by fetching from the origin.
package injector

//
// HTTP handler
//

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/relay"
	"github.com/ouinet-go/ouinet/internal/version"
)

// InjectionIDHeader is the response header containing the injection ID.
const InjectionIDHeader = "X-Ouinet-Injection-ID"

// DefaultConnectTimeout is the timeout for connecting to the origin.
const DefaultConnectTimeout = 4 * time.Minute

// HTTPClient is the HTTP client we use to fetch from the origin.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Handler is an [http.Handler] that serves the requests relayed by
// clients. The zero value is invalid; construct using [NewHandler].
type Handler struct {
	// AllowLoopback OPTIONALLY allows fetching from loopback targets.
	AllowLoopback bool

	// Credentials OPTIONALLY contains the "<username>:<password>" pair
	// clients must send in the Proxy-Authorization header.
	Credentials string

	// FetchTimeout is the MANDATORY time budget for fetching from the origin.
	FetchTimeout time.Duration

	// HTTPClient is the MANDATORY client for fetching from the origin.
	HTTPClient HTTPClient

	// Indexer is the MANDATORY atomic integer used to assign an index to requests.
	Indexer *atomic.Int64

	// Logger is the MANDATORY logger.
	Logger model.Logger

	// LookupHost is the MANDATORY function to resolve target hosts.
	LookupHost func(ctx context.Context, host string) ([]string, error)

	// NewInjectionID is the MANDATORY factory for injection IDs.
	NewInjectionID func() string
}

var _ http.Handler = &Handler{}

// NewHandler creates a new [*Handler].
func NewHandler(logger model.Logger) *Handler {
	return &Handler{
		FetchTimeout: relay.DefaultFetchTimeout,
		HTTPClient:   NewHTTPClient(),
		Indexer:      &atomic.Int64{},
		Logger:       model.ValidLoggerOrDefault(logger),
		LookupHost:   net.DefaultResolver.LookupHost,
		NewInjectionID: func() string {
			return uuid.Must(uuid.NewRandom()).String()
		},
	}
}

// NewHTTPClient creates the client we use to fetch from the origin. The
// client does not use any proxy, does not follow redirects, which are
// relayed back, and does not transparently decompress bodies.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: DefaultConnectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			DisableCompression:  true,
			ForceAttemptHTTP2:   true,
			Proxy:               nil,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	metricRequestsInflight.Inc()
	defer metricRequestsInflight.Dec()

	w.Header().Set("Server", "ouinet-injector/"+version.Version)
	logger := model.NewPrefixLogger(fmt.Sprintf("injector: #%d: ", h.Indexer.Add(1)), h.Logger)

	if !h.authenticated(req) {
		logger.Warnf("%s %s: proxy authentication required", req.Method, req.URL.String())
		metricRequestsCount.WithLabelValues("407", "proxy_auth_required").Inc()
		w.Header().Set("Proxy-Authenticate", `Basic realm="InjectorAuth"`)
		http.Error(w, "Proxy authentication required", http.StatusProxyAuthRequired)
		return
	}
	if req.Method == http.MethodConnect {
		h.badRequest(w, logger, "connect_not_supported", "CONNECT is not supported")
		return
	}
	if !req.URL.IsAbs() || (req.URL.Scheme != "http" && req.URL.Scheme != "https") {
		h.badRequest(w, logger, "not_a_proxy_request", "Expected an absolute http or https URL")
		return
	}
	if reason, message := h.checkTarget(req.Context(), req.URL.Hostname()); reason != "" {
		h.badRequest(w, logger, reason, message)
		return
	}

	started := time.Now()
	resp, body, err := h.fetch(req)
	elapsed := time.Since(started)
	metricFetchSeconds.Observe(elapsed.Seconds())
	if err != nil {
		h.badRequest(w, logger, "fetch_failed", "Failed to retrieve content from origin: "+err.Error())
		return
	}

	injectionID := h.NewInjectionID()
	logger.Infof("%s %s: %d with %d bytes in %s (%s)", req.Method, req.URL.String(),
		resp.StatusCode, len(body), elapsed, injectionID)
	metricRequestsCount.WithLabelValues(strconv.Itoa(resp.StatusCode), "ok").Inc()
	relay.RemoveHopByHopHeaders(resp.Header)
	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	w.Header().Set(InjectionIDHeader, injectionID)
	// a response to HEAD has no body but declares the length of the GET one
	if req.Method != http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

// authenticated returns whether the request carries our credentials.
func (h *Handler) authenticated(req *http.Request) bool {
	if h.Credentials == "" {
		return true
	}
	got := []byte(req.Header.Get("Proxy-Authorization"))
	expected := []byte(relay.ProxyAuthorization(h.Credentials))
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// badRequest replies with 400 and the given message.
func (h *Handler) badRequest(w http.ResponseWriter, logger model.Logger, reason, message string) {
	logger.Warnf("%s", message)
	metricRequestsCount.WithLabelValues("400", reason).Inc()
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(message))
}

// checkTarget returns a non-empty reason and a message when we should
// not fetch from host, which is the case for loopback targets.
func (h *Handler) checkTarget(ctx context.Context, host string) (reason, message string) {
	if h.AllowLoopback {
		return "", ""
	}
	if isLoopback(host) {
		return "illegal_target_host", "Illegal target host: " + host
	}
	if net.ParseIP(host) != nil {
		return "", ""
	}
	addrs, err := h.LookupHost(ctx, host)
	if err != nil {
		return "dns_lookup_failed", "Could not resolve host: " + host
	}
	for _, addr := range addrs {
		if isLoopback(addr) {
			return "illegal_target_host", "Illegal target host: " + host
		}
	}
	return "", ""
}

// isLoopback returns whether host is a name or an address on this host.
func isLoopback(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// errBodyTooLarge indicates that the origin body is too large.
var errBodyTooLarge = errors.New("body too large")

// fetch fetches the request from the origin and reads the whole body.
func (h *Handler) fetch(req *http.Request) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(req.Context(), h.FetchTimeout)
	defer cancel()
	outreq := req.Clone(ctx)
	outreq.RequestURI = ""
	outreq.Close = false
	relay.RemoveHopByHopHeaders(outreq.Header)
	if outreq.ContentLength == 0 {
		outreq.Body = nil
	}
	resp, err := h.HTTPClient.Do(outreq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, relay.MaxBodySize+1))
	if err != nil {
		return nil, nil, err
	}
	if len(body) > relay.MaxBodySize {
		return nil, nil, errBodyTooLarge
	}
	return resp, body, nil
}
