package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Entitlement related metrics
	EntitlementChecksAllowed *prometheus.CounterVec
	EntitlementChecksDenied  *prometheus.CounterVec
	EntitlementCheckLatency  prometheus.Histogram
	UnknownPlanIdentifiers   prometheus.Counter
	SnapshotCacheHits        prometheus.Counter
	SnapshotCacheMisses      prometheus.Counter

	// Billing webhook metrics
	WebhookEventsProcessed *prometheus.CounterVec
	WebhookEventsFailed    *prometheus.CounterVec
	StripeBreakerOpen      prometheus.Counter

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		EntitlementChecksAllowed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entitlement_checks_allowed_total",
			Help:      "Entitlement checks that allowed the request, by check type",
		}, []string{"check"}),
		EntitlementChecksDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entitlement_checks_denied_total",
			Help:      "Entitlement checks that denied the request, by denial reason",
		}, []string{"reason"}),
		EntitlementCheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entitlement_check_duration_seconds",
			Help:      "Time spent resolving tier and usage for a gated request",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		UnknownPlanIdentifiers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unknown_plan_identifiers_total",
			Help:      "Price IDs with no tier mapping; a nonzero rate means the env mapping is stale",
		}),
		SnapshotCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entitlement_snapshot_cache_hits_total",
			Help:      "Entitlement snapshot reads served from cache",
		}),
		SnapshotCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entitlement_snapshot_cache_misses_total",
			Help:      "Entitlement snapshot reads recomputed from the database",
		}),
		WebhookEventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "billing_webhook_events_processed_total",
			Help:      "Billing webhook events handled successfully, by event type",
		}, []string{"type"}),
		WebhookEventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "billing_webhook_events_failed_total",
			Help:      "Billing webhook events that failed processing, by event type",
		}, []string{"type"}),
		StripeBreakerOpen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stripe_breaker_open_total",
			Help:      "Stripe calls rejected because the circuit breaker was open",
		}),
		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}
}
