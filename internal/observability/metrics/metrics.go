package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "garden_"

var (
	registerOnce sync.Once

	ingestEntries *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	candidateObservations prometheus.Counter

	queryRequests *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestEntries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_entries_total",
				Help: "Total ingested entries by outcome",
			},
			[]string{"outcome"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest entry latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		candidateObservations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "candidate_observations_total",
				Help: "Total readings observed for unregistered serials",
			},
		)

		queryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "query_requests_total",
				Help: "Total data query requests by kind and result",
			},
			[]string{"kind", "result"},
		)
		queryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "query_latency_seconds",
				Help:    "Data query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)

		prometheus.MustRegister(
			ingestEntries,
			ingestLatency,
			candidateObservations,
			queryRequests,
			queryLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveEntry records one processed ingest entry.
func ObserveEntry(outcome string, duration time.Duration) {
	if outcome == "" {
		return
	}
	if ingestEntries != nil {
		ingestEntries.WithLabelValues(outcome).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObserveCandidate records an observation for an unregistered serial.
func ObserveCandidate() {
	if candidateObservations != nil {
		candidateObservations.Inc()
	}
}

// ObserveQuery records a data query request.
func ObserveQuery(kind, result string, duration time.Duration) {
	if queryRequests != nil {
		queryRequests.WithLabelValues(kind, result).Inc()
	}
	if queryLatency != nil {
		queryLatency.WithLabelValues(kind).Observe(duration.Seconds())
	}
}
