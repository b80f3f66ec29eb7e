// Package metrics holds the relay's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook status labels.
const (
	StatusSuccess    = "success"
	StatusIgnored    = "ignored"
	StatusBadRequest = "bad_request"
	StatusTooLarge   = "too_large"
	StatusError      = "error"
)

// Conversion outcome labels.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
)

// Metrics records webhook and delivery activity.
type Metrics struct {
	webhooksTotal    *prometheus.CounterVec
	webhookBytes     prometheus.Counter
	conversionsTotal *prometheus.CounterVec
	sendDuration     *prometheus.HistogramVec
}

// New registers the relay metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		webhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capi_relay_webhooks_total",
			Help: "Total number of webhooks received",
		}, []string{"event_type", "status"}),

		webhookBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "capi_relay_webhook_bytes_total",
			Help: "Total bytes of webhook payloads received",
		}),

		conversionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capi_relay_conversions_total",
			Help: "Total number of conversion events sent to the Conversions API",
		}, []string{"event_name", "outcome"}),

		sendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capi_relay_send_duration_seconds",
			Help:    "Duration of Conversions API requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_name"}),
	}
}

// WebhookReceived counts one webhook by event type and handling status.
func (m *Metrics) WebhookReceived(eventType, status string) {
	if eventType == "" {
		eventType = "none"
	}
	m.webhooksTotal.WithLabelValues(eventType, status).Inc()
}

// WebhookBytes adds n bytes of received payload.
func (m *Metrics) WebhookBytes(n int) {
	m.webhookBytes.Add(float64(n))
}

// ConversionSent records the outcome and latency of one delivery.
func (m *Metrics) ConversionSent(eventName string, delivered bool, d time.Duration) {
	outcome := OutcomeFailed
	if delivered {
		outcome = OutcomeDelivered
	}
	m.conversionsTotal.WithLabelValues(eventName, outcome).Inc()
	if d > 0 {
		m.sendDuration.WithLabelValues(eventName).Observe(d.Seconds())
	}
}
