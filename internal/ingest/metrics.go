package ingest

import "github.com/prometheus/client_golang/prometheus"

var (
	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Ingestions by result",
		},
		[]string{"result"},
	)

	ingestChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "chunks",
			Help:      "Chunks written per ingested document",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	ingestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time to extract, chunk, embed and store a document",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ingestTotal, ingestChunks, ingestDuration)
}
