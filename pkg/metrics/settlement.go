package metrics

import "github.com/prometheus/client_golang/prometheus"

// SettlementMetrics counts money movements performed by the settlement core.
type SettlementMetrics struct {
	webhooks *prometheus.CounterVec
	credited prometheus.Counter
	captured *prometheus.CounterVec
	refunded prometheus.Counter
}

// NewSettlementMetrics registers the settlement counters on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "webhook_events_total",
		Help:      "Provider webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	credited := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "seller_credit_cents_total",
		Help:      "Cents credited to seller balances.",
	})
	captured := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "captures_total",
		Help:      "Deferred capture attempts by outcome.",
	}, []string{"outcome"})
	refunded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "refund_cents_total",
		Help:      "Cents refunded to buyers.",
	})
	reg.MustRegister(webhooks, credited, captured, refunded)
	return &SettlementMetrics{
		webhooks: webhooks,
		credited: credited,
		captured: captured,
		refunded: refunded,
	}
}

// ObserveWebhook records a processed webhook event.
func (s *SettlementMetrics) ObserveWebhook(eventType, outcome string) {
	if s == nil || s.webhooks == nil {
		return
	}
	s.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// AddCredit records cents credited to a seller.
func (s *SettlementMetrics) AddCredit(cents int64) {
	if s == nil || s.credited == nil || cents <= 0 {
		return
	}
	s.credited.Add(float64(cents))
}

// ObserveCapture records a capture attempt outcome.
func (s *SettlementMetrics) ObserveCapture(outcome string) {
	if s == nil || s.captured == nil {
		return
	}
	s.captured.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddRefund records cents refunded to a buyer.
func (s *SettlementMetrics) AddRefund(cents int64) {
	if s == nil || s.refunded == nil || cents <= 0 {
		return
	}
	s.refunded.Add(float64(cents))
}
