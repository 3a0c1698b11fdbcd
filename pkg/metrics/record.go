package metrics

import "time"

// Recording helpers. All are safe to call on a nil *Metrics so that unit
// tests can run components without a registry.

// RecordWebhookEvent counts a webhook delivery by outcome.
func (m *Metrics) RecordWebhookEvent(outcome string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordEntryRouted counts a routed entry change by field.
func (m *Metrics) RecordEntryRouted(field string) {
	if m == nil {
		return
	}
	m.WebhookEntriesRouted.WithLabelValues(field).Inc()
}

// RecordEntryFailure counts a failed entry.
func (m *Metrics) RecordEntryFailure() {
	if m == nil {
		return
	}
	m.WebhookEntryFailures.Inc()
}

// RecordRuleEvaluated counts an evaluated rule.
func (m *Metrics) RecordRuleEvaluated() {
	if m == nil {
		return
	}
	m.RulesEvaluated.Inc()
}

// RecordRuleTriggered counts a matched rule by type.
func (m *Metrics) RecordRuleTriggered(ruleType string) {
	if m == nil {
		return
	}
	m.RulesTriggered.WithLabelValues(ruleType).Inc()
}

// RecordAction counts an attempted action phase by status.
func (m *Metrics) RecordAction(phase, status string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(phase, status).Inc()
}

// RecordResolverMiss counts an unroutable webhook entry.
func (m *Metrics) RecordResolverMiss(mode string) {
	if m == nil {
		return
	}
	m.ResolverMisses.WithLabelValues(mode).Inc()
}

// RecordGatewayCall counts a Graph API call and observes its latency.
func (m *Metrics) RecordGatewayCall(operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayCallsTotal.WithLabelValues(operation, status).Inc()
	m.GatewayCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
