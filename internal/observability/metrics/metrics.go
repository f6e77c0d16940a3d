package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConversationMetrics exposes counters/histograms for the chat flow.
type ConversationMetrics struct {
	messagesTotal     *prometheus.CounterVec
	completionLatency prometheus.Histogram
	leadsCreated      prometheus.Counter
	bookingsTotal     *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saba",
			Subsystem: "conversation",
			Name:      "messages_total",
			Help:      "Total inbound chat messages processed",
		}, []string{"status"}),
		completionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "saba",
			Subsystem: "conversation",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion backend calls",
			Buckets:   prometheus.DefBuckets,
		}),
		leadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "saba",
			Subsystem: "leads",
			Name:      "created_total",
			Help:      "Total leads created",
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saba",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total calendar booking attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.completionLatency, m.leadsCreated, m.bookingsTotal)
	return m
}

func (m *ConversationMetrics) ObserveMessage(status string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(status).Inc()
}

func (m *ConversationMetrics) ObserveCompletionLatency(seconds float64) {
	if m == nil {
		return
	}
	m.completionLatency.Observe(seconds)
}

func (m *ConversationMetrics) ObserveLeadCreated() {
	if m == nil {
		return
	}
	m.leadsCreated.Inc()
}

func (m *ConversationMetrics) ObserveBooking(strategy, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(strategy, outcome).Inc()
}
