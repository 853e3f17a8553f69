package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts ingestion outcomes. A nil *Metrics records nothing.
type Metrics struct {
	admittedTotal prometheus.Counter
	rejectedTotal prometheus.Counter
	errorsTotal   *prometheus.CounterVec
	size          prometheus.Gauge
}

// NewMetrics creates the ingestion metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mqscope",
			Subsystem: "ingest",
			Name:      "messages_admitted_total",
			Help:      "Messages admitted into the message store.",
		}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mqscope",
			Subsystem: "ingest",
			Name:      "messages_rejected_total",
			Help:      "Messages dropped because the message store was full.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqscope",
			Subsystem: "ingest",
			Name:      "session_errors_total",
			Help:      "Session errors by classification.",
		}, []string{"classification"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mqscope",
			Subsystem: "ingest",
			Name:      "store_messages",
			Help:      "Messages currently held in the message store.",
		}),
	}
	reg.MustRegister(m.admittedTotal, m.rejectedTotal, m.errorsTotal, m.size)
	return m
}

func (m *Metrics) admitted() {
	if m != nil {
		m.admittedTotal.Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.rejectedTotal.Inc()
	}
}

func (m *Metrics) classified(c Classification) {
	if m != nil {
		m.errorsTotal.WithLabelValues(c.String()).Inc()
	}
}

func (m *Metrics) storeSize(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}
