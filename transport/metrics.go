package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// promMetrics implements metricsHook on top of prometheus/client_golang,
// giving every packet-number space a shared set of counters and
// histograms labeled by space kind.
type promMetrics struct {
	sentTotal       *prometheus.CounterVec
	sentBytes       *prometheus.CounterVec
	ackedTotal      *prometheus.CounterVec
	lostTotal       *prometheus.CounterVec
	rttSeconds      *prometheus.HistogramVec
}

// NewPrometheusMetrics registers and returns a Metrics wrapping the
// space-level counters under reg. Pass the result to Space.SetMetrics for
// every space in a Coordinator to get connection-wide observability.
func NewPrometheusMetrics(reg prometheus.Registerer) *Metrics {
	pm := &promMetrics{
		sentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcore",
			Name:      "packets_sent_total",
			Help:      "Packets sent, by packet-number space.",
		}, []string{"space", "ack_eliciting"}),
		sentBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcore",
			Name:      "bytes_sent_total",
			Help:      "Bytes sent, by packet-number space.",
		}, []string{"space"}),
		ackedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcore",
			Name:      "packets_acked_total",
			Help:      "Packets acknowledged, by packet-number space.",
		}, []string{"space"}),
		lostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcore",
			Name:      "packets_lost_total",
			Help:      "Packets declared lost, by packet-number space.",
		}, []string{"space"}),
		rttSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qcore",
			Name:      "rtt_seconds",
			Help:      "Observed RTT samples, by packet-number space.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"space"}),
	}
	if reg != nil {
		reg.MustRegister(pm.sentTotal, pm.sentBytes, pm.ackedTotal, pm.lostTotal, pm.rttSeconds)
	}
	return &Metrics{hook: pm}
}

func (m *promMetrics) observeSent(kind SpaceKind, ackEliciting bool, size int) {
	m.sentTotal.WithLabelValues(kind.String(), boolLabel(ackEliciting)).Inc()
	m.sentBytes.WithLabelValues(kind.String()).Add(float64(size))
}

func (m *promMetrics) observeAcked(kind SpaceKind, n int) {
	m.ackedTotal.WithLabelValues(kind.String()).Add(float64(n))
}

func (m *promMetrics) observeLost(kind SpaceKind, n int) {
	m.lostTotal.WithLabelValues(kind.String()).Add(float64(n))
}

func (m *promMetrics) observeRTT(kind SpaceKind, d time.Duration) {
	m.rttSeconds.WithLabelValues(kind.String()).Observe(d.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
