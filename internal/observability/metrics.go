package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequestsTotal counts proxy lookups by bucket (scalar/array) and
	// outcome (hit/miss/stale/error).
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_cache_requests_total",
		Help: "Proxy cache lookups by payload bucket and outcome",
	}, []string{"bucket", "outcome"})

	// UpstreamDurationSeconds measures report service latency per kind.
	UpstreamDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_upstream_duration_seconds",
		Help:    "Latency of report service calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// UncachedRequestsTotal counts calls that bypass the cache by policy.
	UncachedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_uncached_requests_total",
		Help: "Report calls that always reach the upstream",
	}, []string{"kind", "status"})

	// HubObservers tracks live observers across all elections.
	HubObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_observers",
		Help: "Registered observers across all elections",
	})

	// HubDeliveriesTotal counts vote event deliveries by status.
	HubDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_deliveries_total",
		Help: "Vote event deliveries by status",
	}, []string{"status"})

	// HubPrunedTotal counts observers removed by reason (broadcast/ping).
	HubPrunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_pruned_total",
		Help: "Observers removed after a failed delivery or ping",
	}, []string{"reason"})

	// BatchUnitsTotal counts processed units by status (ok/failed).
	BatchUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_units_total",
		Help: "Units processed by the batch orchestrator",
	}, []string{"status"})

	// BatchInFlight is 1 while a job runs.
	BatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "batch_in_flight",
		Help: "1 while a batch job is running",
	})

	// BatchJobDurationSeconds measures whole-job wall time.
	BatchJobDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_job_duration_seconds",
		Help:    "Wall time of batch jobs",
		Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
	})

	// BatchRejectedTotal counts submissions refused while a job was running.
	BatchRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_rejected_total",
		Help: "Batch submissions rejected because a job was in flight",
	})
)
