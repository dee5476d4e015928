package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics хранит счётчики Prometheus для жизненного цикла проектов, платежей и классов.
// Все методы допускают nil-получатель, чтобы тесты могли обходиться без метрик.
type Metrics struct {
	bidEvents          *prometheus.CounterVec
	projectTransitions *prometheus.CounterVec
	payments           *prometheus.CounterVec
	sessions           prometheus.Counter
	ledgerLatency      *prometheus.HistogramVec
	notifications      *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики в переданном реестре.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bidEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_bid_events_total",
				Help: "Bid ledger writes by event",
			},
			[]string{"event"},
		),
		projectTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_project_transitions_total",
				Help: "Project lifecycle transitions by target status",
			},
			[]string{"status"},
		),
		payments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_payments_total",
				Help: "Payment attempts by result",
			},
			[]string{"result"},
		),
		sessions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "marketplace_classroom_sessions_total",
				Help: "Classroom sessions provisioned",
			},
		),
		ledgerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketplace_ledger_latency_ms",
				Help:    "Latency of bid ledger transactions in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"op"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_notifications_total",
				Help: "Notifications dispatched by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) BidEvent(event string) {
	if m == nil {
		return
	}
	m.bidEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ProjectTransition(status string) {
	if m == nil {
		return
	}
	m.projectTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Payment(result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionProvisioned() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// ObserveLedger записывает длительность операции реестра предложений.
func (m *Metrics) ObserveLedger(op string, start time.Time) {
	if m == nil {
		return
	}
	m.ledgerLatency.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
