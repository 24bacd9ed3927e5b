// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BundlesAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phr",
			Name:      "bundles_assembled_total",
			Help:      "Export bundles assembled, by output format.",
		},
		[]string{"format"},
	)

	RemoteBranchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phr",
			Name:      "bundle_remote_branch_failures_total",
			Help:      "Remote structured-table reads that failed during bundle assembly.",
		},
		[]string{"branch"},
	)

	SignedURLsMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "phr",
			Name:      "signed_urls_minted_total",
			Help:      "Expiring storage access URLs issued.",
		},
	)

	CascadePhaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phr",
			Name:      "document_delete_phase_failures_total",
			Help:      "Non-authoritative phases of a document delete that failed and were skipped.",
		},
		[]string{"phase"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phr",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status class.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phr",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
