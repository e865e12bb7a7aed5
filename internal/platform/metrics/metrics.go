package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	TenantsCreated prometheus.Counter
	TenantsDeleted *prometheus.CounterVec
	KeysRotated    prometheus.Counter
	PlanChanges    *prometheus.CounterVec

	CallsAdmitted prometheus.Counter
	CallsRejected *prometheus.CounterVec
	QuotaExceeded prometheus.Counter

	WebhooksVerified *prometheus.CounterVec
	WebhooksRejected prometheus.Counter

	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		TenantsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_tenants_created_total",
			Help: "Total number of tenant records created",
		}),
		TenantsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_tenants_deleted_total",
			Help: "Total number of tenant records deleted, labeled by trigger",
		}, []string{"trigger"}),
		KeysRotated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_access_keys_rotated_total",
			Help: "Total number of access key rotations",
		}),
		PlanChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_plan_changes_total",
			Help: "Total number of plan transitions, labeled by target plan",
		}, []string{"plan"}),
		CallsAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_calls_admitted_total",
			Help: "Total number of metered calls admitted",
		}),
		CallsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_calls_rejected_total",
			Help: "Total number of calls rejected at the gate, labeled by reason",
		}, []string{"reason"}),
		QuotaExceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_quota_exceeded_total",
			Help: "Total number of calls rejected because the plan limit was reached",
		}),
		WebhooksVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_webhooks_verified_total",
			Help: "Total number of webhook deliveries with a valid signature, labeled by topic",
		}, []string{"topic"}),
		WebhooksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "toolgate_webhooks_rejected_total",
			Help: "Total number of webhook deliveries rejected at signature verification",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "toolgate_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
