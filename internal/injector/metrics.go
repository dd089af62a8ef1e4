package injector

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSummaryObjectives returns the summary objectives for promauto.NewSummary.
func metricsSummaryObjectives() map[float64]float64 {
	return map[float64]float64{
		0.25: 0.010, // 0.240 <= φ <= 0.260
		0.5:  0.010, // 0.490 <= φ <= 0.510
		0.75: 0.010, // 0.740 <= φ <= 0.760
		0.9:  0.010, // 0.899 <= φ <= 0.901
		0.99: 0.001, // 0.989 <= φ <= 0.991
	}
}

var (
	// metricRequestsCount counts the number of requests we served.
	metricRequestsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ouinet_injector_requests_count",
		Help: "Total number of processed requests",
	}, []string{"code", "reason"})

	// metricRequestsInflight gauges the number of requests currently inflight.
	metricRequestsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ouinet_injector_requests_inflight_gauge",
		Help: "The number or requests currently inflight",
	})

	// metricFetchSeconds summarizes the time to fetch from the origin.
	metricFetchSeconds = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "ouinet_injector_fetch_duration_seconds",
		Help:       "Summarizes the time to fetch a resource from the origin (in seconds)",
		Objectives: metricsSummaryObjectives(),
	})
)
