package rag

import "github.com/prometheus/client_golang/prometheus"

var (
	answersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "rag",
			Name:      "answers_total",
			Help:      "Answers by source type",
		},
		[]string{"source_type"},
	)

	escalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "rag",
			Name:      "escalations_total",
			Help:      "Escalations by triggering rule and whether the web search returned anything",
		},
		[]string{"reason", "outcome"},
	)

	answerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "rag",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end answer latency",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source_type"},
	)
)

func init() {
	prometheus.MustRegister(answersTotal, escalationsTotal, answerDuration)
}
