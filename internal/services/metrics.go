package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// adaptationOutcomes counts propose calls by terminal outcome: completed,
	// pending, replayed, or an error kind.
	adaptationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_adaptation_outcomes_total",
			Help: "Adaptation propose calls by outcome.",
		},
		[]string{"outcome"},
	)

	// adaptationInflight gauges guards held by this process.
	adaptationInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_adaptation_inflight",
			Help: "Adaptation requests currently holding the in-flight guard.",
		},
	)

	// generatorLatency records generator call duration by result status.
	generatorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_generator_duration_seconds",
			Help:    "Duration of adaptation generator calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	// acceptOutcomes counts accept calls by outcome.
	acceptOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_adaptation_accepts_total",
			Help: "Adaptation accept calls by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(adaptationOutcomes, adaptationInflight, generatorLatency, acceptOutcomes)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(KindOf(err))
}
