package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics tracks order and delivery lifecycle activity.
type DomainMetrics struct {
	ordersPlaced        prometheus.Counter
	orderDecisions      *prometheus.CounterVec
	trackingTransitions *prometheus.CounterVec
	trackingRejected    *prometheus.CounterVec
}

func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	m := &DomainMetrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders placed through checkout.",
		}),
		orderDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_decisions_total",
			Help:      "Order validations by decision.",
		}, []string{"decision"}),
		trackingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_transitions_total",
			Help:      "Accepted delivery tracking transitions.",
		}, []string{"from", "to"}),
		trackingRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_transitions_rejected_total",
			Help:      "Delivery tracking transitions refused by the state machine.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(m.ordersPlaced, m.orderDecisions, m.trackingTransitions, m.trackingRejected)
	return m
}

func (m *DomainMetrics) OrderPlaced() {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Inc()
}

func (m *DomainMetrics) OrderDecided(decision string) {
	if m == nil || m.orderDecisions == nil {
		return
	}
	m.orderDecisions.WithLabelValues(normalizeLabel(decision)).Inc()
}

func (m *DomainMetrics) TrackingAdvanced(from, to string) {
	if m == nil || m.trackingTransitions == nil {
		return
	}
	m.trackingTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *DomainMetrics) TrackingRejected(from, to string) {
	if m == nil || m.trackingRejected == nil {
		return
	}
	m.trackingRejected.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
