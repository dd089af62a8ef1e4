package broker

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSummaryObjectives returns the summary objectives for promauto.NewSummaryVec.
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
	// metricRoundsCount counts arbitration rounds by outcome.
	metricRoundsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ouinet_broker_rounds_total",
		Help: "Total number of arbitration rounds by outcome",
	}, []string{"outcome"})

	// metricRoundsInflight gauges the number of rounds currently inflight.
	metricRoundsInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ouinet_broker_rounds_inflight_gauge",
		Help: "The number of arbitration rounds currently inflight",
	})

	// metricBootstrapSeconds summarizes the time for a transport to leave
	// the pending state, labelled by the state it reached.
	metricBootstrapSeconds = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name:       "ouinet_transport_bootstrap_seconds",
		Help:       "Summarizes the time for a transport to become ready or fail (in seconds)",
		Objectives: metricsSummaryObjectives(),
	}, []string{"transport", "state"})
)
