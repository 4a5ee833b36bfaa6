// Package metrics provides Prometheus metrics for the Tulip service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncCyclesTotal tracks reconciliation cycles by mode and outcome
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Total number of reconciliation cycles by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// SyncCycleDuration tracks reconciliation cycle duration in seconds
	SyncCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tulip",
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of reconciliation cycles in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	// SyncRowsTotal tracks rows written per cycle by operation
	SyncRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "sync",
			Name:      "rows_total",
			Help:      "Total number of rows created, updated or deleted by sync cycles",
		},
		[]string{"mode", "operation"},
	)

	// EnrichmentRequestsTotal tracks CRM enrichment lookups
	EnrichmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "enrichment",
			Name:      "requests_total",
			Help:      "Total number of CRM enrichment lookups by status",
		},
		[]string{"status"},
	)

	// EnrichmentDuration tracks CRM enrichment lookup duration
	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tulip",
			Subsystem: "enrichment",
			Name:      "request_duration_seconds",
			Help:      "Duration of CRM enrichment lookups in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// ReferenceCacheHits tracks reference sheet cache hits and misses
	ReferenceCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "reference",
			Name:      "cache_requests_total",
			Help:      "Total number of reference cache lookups by result",
		},
		[]string{"result"},
	)

	// IngestRowsTotal tracks listings feed rows by disposition
	IngestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Total number of listings feed rows ingested by disposition",
		},
		[]string{"disposition"},
	)

	// ClaimsTotal tracks listing claims by agents
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "listings",
			Name:      "claims_total",
			Help:      "Total number of listings claimed by agents, by category",
		},
		[]string{"category"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tulip",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// HTTPRequestDuration tracks HTTP request duration by route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tulip",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tulip",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordSyncCycle records a completed reconciliation cycle
func RecordSyncCycle(mode, outcome string, durationSeconds float64) {
	SyncCyclesTotal.WithLabelValues(mode, outcome).Inc()
	SyncCycleDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordSyncRows records rows written by a reconciliation cycle
func RecordSyncRows(mode string, created, updated, deleted int) {
	SyncRowsTotal.WithLabelValues(mode, "created").Add(float64(created))
	SyncRowsTotal.WithLabelValues(mode, "updated").Add(float64(updated))
	SyncRowsTotal.WithLabelValues(mode, "deleted").Add(float64(deleted))
}

// RecordEnrichment records a CRM enrichment lookup
func RecordEnrichment(status string, durationSeconds float64) {
	EnrichmentRequestsTotal.WithLabelValues(status).Inc()
	EnrichmentDuration.Observe(durationSeconds)
}

// RecordReferenceCache records a reference cache lookup result
func RecordReferenceCache(result string) {
	ReferenceCacheHits.WithLabelValues(result).Inc()
}

// RecordIngestRows records listings feed rows by disposition
func RecordIngestRows(inserted, updated int) {
	IngestRowsTotal.WithLabelValues("inserted").Add(float64(inserted))
	IngestRowsTotal.WithLabelValues("updated").Add(float64(updated))
}

// RecordClaim records a listing claim
func RecordClaim(category string) {
	ClaimsTotal.WithLabelValues(category).Inc()
}

// RecordHTTPRequest records a completed HTTP request
func RecordHTTPRequest(route, method string, status int, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordDatabaseQuery records the duration of a database operation
func RecordDatabaseQuery(operation string, durationSeconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}
