package client

//
// Local HTTP proxy
//

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ouinet-go/ouinet/internal/errorsx"
	"github.com/ouinet-go/ouinet/internal/model"
	"github.com/ouinet-go/ouinet/internal/relay"
)

// Fetcher fetches resources through the injector. The [*Client]
// type implements this interface.
type Fetcher interface {
	Fetch(ctx context.Context, exchange *relay.Exchange) (*relay.Response, error)
}

// Proxy is an [http.Handler] implementing a plain HTTP proxy where each
// request runs an arbitration round followed by a relay exchange.
type Proxy struct {
	// Fetcher is the MANDATORY fetcher.
	Fetcher Fetcher

	// Indexer is the MANDATORY atomic integer used to assign an index to requests.
	Indexer *atomic.Int64

	// Logger is the MANDATORY logger.
	Logger model.Logger
}

var _ http.Handler = &Proxy{}

// NewProxy creates a new [*Proxy].
func NewProxy(logger model.Logger, fetcher Fetcher) *Proxy {
	return &Proxy{
		Fetcher: fetcher,
		Indexer: &atomic.Int64{},
		Logger:  model.ValidLoggerOrDefault(logger),
	}
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	metricRequestsInflight.Inc()
	defer metricRequestsInflight.Dec()

	// we cannot verify the shape of tunnelled traffic
	if req.Method == http.MethodConnect {
		metricRequestsCount.WithLabelValues("501", "connect_not_supported").Inc()
		http.Error(w, "CONNECT is not supported", http.StatusNotImplemented)
		return
	}
	if !req.URL.IsAbs() {
		metricRequestsCount.WithLabelValues("400", "not_a_proxy_request").Inc()
		http.Error(w, "Expected an absolute URL", http.StatusBadRequest)
		return
	}

	logger := model.NewPrefixLogger(fmt.Sprintf("proxy: #%d: ", p.Indexer.Add(1)), p.Logger)
	outreq := req.Clone(req.Context())
	outreq.RequestURI = ""
	started := time.Now()
	resp, err := p.Fetcher.Fetch(req.Context(), &relay.Exchange{Request: outreq})
	if err != nil {
		logger.Warnf("%s %s: %s", req.Method, req.URL.String(), err.Error())
		code, reason := http.StatusBadGateway, "relay_failed"
		if errors.Is(err, errorsx.ErrNoTransportAvailable) {
			code, reason = http.StatusServiceUnavailable, "no_transport_available"
		}
		metricRequestsCount.WithLabelValues(strconv.Itoa(code), reason).Inc()
		http.Error(w, err.Error(), code)
		return
	}
	logger.Infof("%s %s: %d in %s", req.Method, req.URL.String(), resp.StatusCode, time.Since(started))
	metricRequestsCount.WithLabelValues(strconv.Itoa(resp.StatusCode), "ok").Inc()
	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	// a response to HEAD has no body but declares the length of the GET one
	if req.Method != http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
