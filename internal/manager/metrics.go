package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "runtime",
			Name:      "loads_total",
			Help:      "Model load attempts by result",
		},
		[]string{"model", "result"},
	)

	switchesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "runtime",
			Name:      "switches_total",
			Help:      "Model switches performed",
		},
	)

	fallbacksCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "runtime",
			Name:      "fallbacks_total",
			Help:      "Loads that succeeded only with a fallback model",
		},
	)

	residentGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragd",
			Subsystem: "runtime",
			Name:      "resident_instances",
			Help:      "Live runtime sessions",
		},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "runtime",
			Name:      "generation_duration_seconds",
			Help:      "Duration of generations in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model"},
	)

	queueRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "runtime",
			Name:      "queue_rejections_total",
			Help:      "Generations rejected by admission control",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(loadsCounter, switchesCounter, fallbacksCounter, residentGauge, generationDuration, queueRejections)
}
