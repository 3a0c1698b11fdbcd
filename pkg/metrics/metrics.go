package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	// Webhook ingress metrics
	WebhookEventsTotal   *prometheus.CounterVec // outcome: processed, duplicate, invalid_signature, malformed
	WebhookEntriesRouted *prometheus.CounterVec // by change field
	WebhookEntryFailures prometheus.Counter

	// Automation metrics
	RulesEvaluated prometheus.Counter
	RulesTriggered *prometheus.CounterVec // by rule type
	ActionsTotal   *prometheus.CounterVec // phase (comment|dm) x status (sent|failed)
	ResolverMisses *prometheus.CounterVec // mode (strict|fallback)

	// Gateway metrics
	GatewayCallsTotal   *prometheus.CounterVec // operation x status
	GatewayCallDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WebhookEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_events_total",
				Help: "Webhook deliveries received, by processing outcome",
			},
			[]string{"outcome"},
		),
		WebhookEntriesRouted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_entries_routed_total",
				Help: "Webhook entry changes routed, by change field",
			},
			[]string{"field"},
		),
		WebhookEntryFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webhook_entry_failures_total",
				Help: "Webhook entries that failed during processing",
			},
		),
		RulesEvaluated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "automation_rules_evaluated_total",
				Help: "Automation rules evaluated against inbound comments",
			},
		),
		RulesTriggered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_rules_triggered_total",
				Help: "Automation rules that matched an inbound comment",
			},
			[]string{"rule_type"},
		),
		ActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_actions_total",
				Help: "Automation actions attempted, by phase and status",
			},
			[]string{"phase", "status"},
		),
		ResolverMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_resolver_misses_total",
				Help: "Webhook entries that could not be mapped to a workspace",
			},
			[]string{"mode"},
		),
		GatewayCallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_calls_total",
				Help: "Instagram Graph API calls, by operation and status",
			},
			[]string{"operation", "status"},
		),
		GatewayCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_call_duration_seconds",
				Help:    "Instagram Graph API call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}
