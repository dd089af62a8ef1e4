package client

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricRequestsCount counts the number of proxied requests.
	metricRequestsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ouinet_client_requests_count",
		Help: "Total number of requests served by the local proxy",
	}, []string{"code", "reason"})

	// metricRequestsInflight gauges the number of proxied requests currently inflight.
	metricRequestsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ouinet_client_requests_inflight_gauge",
		Help: "The number or requests currently inflight",
	})
)
