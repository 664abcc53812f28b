package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics counts purchase, payment and outbox outcomes. A nil
// receiver is a no-op so services can run without a registry.
type LifecycleMetrics struct {
	confirmations   *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	outboxPublished *prometheus.CounterVec
}

// NewLifecycleMetrics registers the lifecycle collectors on reg.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_purchase_confirmations_total",
		Help: "Purchase confirmation attempts by result.",
	}, []string{"result"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_webhook_events_total",
		Help: "Payment webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cm_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})
	outboxPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_outbox_events_total",
		Help: "Outbox publish attempts by result.",
	}, []string{"result"})
	reg.MustRegister(confirmations, webhookEvents, gatewayDuration, outboxPublished)
	return &LifecycleMetrics{
		confirmations:   confirmations,
		webhookEvents:   webhookEvents,
		gatewayDuration: gatewayDuration,
		outboxPublished: outboxPublished,
	}
}

// IncConfirmation records a confirmation result such as "confirmed" or "insufficient_stock".
func (m *LifecycleMetrics) IncConfirmation(result string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncWebhookEvent records how a gateway event was handled.
func (m *LifecycleMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveGateway records the duration of a gateway call.
func (m *LifecycleMetrics) ObserveGateway(op string, err error, duration time.Duration) {
	if m == nil || m.gatewayDuration == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.gatewayDuration.WithLabelValues(normalizeLabel(op), result).Observe(duration.Seconds())
}

// IncOutbox records an outbox publish result: published, retry or dlq.
func (m *LifecycleMetrics) IncOutbox(result string) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(normalizeLabel(result)).Inc()
}
