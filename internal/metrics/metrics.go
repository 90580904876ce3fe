// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Recognition Metrics
// =============================================================================

var (
	// IdentifyTotal counts identification decisions by resolved status
	IdentifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_identify_total",
			Help: "Total number of identification decisions by status",
		},
		[]string{"status"}, // "recognized", "not_in_database", "no_face_detected"
	)

	// SearchDuration measures one exhaustive gallery search
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facerecognizer_search_duration_seconds",
			Help:    "Duration of exhaustive nearest-neighbor searches",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"metric"},
	)

	// EnrollmentsTotal counts enrolled embeddings and failed enrollment items
	EnrollmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_enrollments_total",
			Help: "Total number of enrollment items by result",
		},
		[]string{"result"}, // "added", "failed"
	)
)

// =============================================================================
// Store Metrics
// =============================================================================

var (
	// StoreIdentities is the number of identities currently in memory
	StoreIdentities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerecognizer_store_identities",
			Help: "Number of identities in the identity store",
		},
	)

	// StoreEmbeddings is the number of embeddings currently in memory
	StoreEmbeddings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facerecognizer_store_embeddings",
			Help: "Number of embeddings in the identity store",
		},
	)

	// StoreSavesTotal counts snapshot saves by result
	StoreSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_store_saves_total",
			Help: "Total number of identity store saves by result",
		},
		[]string{"result"}, // "ok", "error"
	)

	// StoreSaveDuration measures snapshot serialization and replacement
	StoreSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facerecognizer_store_save_duration_seconds",
			Help:    "Duration of identity store saves",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BackupUploadsTotal counts snapshot uploads to object storage by result
	BackupUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_backup_uploads_total",
			Help: "Total number of snapshot backup uploads by result",
		},
		[]string{"result"},
	)
)

// =============================================================================
// Extractor and HTTP Metrics
// =============================================================================

var (
	// ExtractorRequestsTotal counts calls to the embedding service by result
	ExtractorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_extractor_requests_total",
			Help: "Total number of embedding service requests by result",
		},
		[]string{"result"}, // "ok", "no_face", "error"
	)

	// ExtractorDuration measures embedding service round trips
	ExtractorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facerecognizer_extractor_duration_seconds",
			Help:    "Duration of embedding service requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	// HTTPRequestsTotal counts API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPRequestDuration measures API request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "facerecognizer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facerecognizer_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)
)
