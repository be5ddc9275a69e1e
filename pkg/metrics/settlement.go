package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks settlement throughput and the replay backlog. The
// backlog gauge is the operational surface for partially settled orders: a
// non-zero value means outbox events still await downstream acknowledgement.
type SettlementMetrics struct {
	settlements *prometheus.CounterVec
	replays     prometheus.Counter
	backlog     prometheus.Gauge
}

// NewSettlementMetrics registers settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Settlement attempts by outcome.",
	}, []string{"outcome"})
	replays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_replays_total",
		Help: "Settlement events replayed by the worker.",
	})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "settlement_outbox_backlog",
		Help: "Unpublished settlement outbox events awaiting delivery.",
	})
	reg.MustRegister(settlements, replays, backlog)
	return &SettlementMetrics{
		settlements: settlements,
		replays:     replays,
		backlog:     backlog,
	}
}

// IncSettled increments the successful settlement counter.
func (m *SettlementMetrics) IncSettled() {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues("settled").Inc()
}

// IncFailed increments the failed settlement counter.
func (m *SettlementMetrics) IncFailed() {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues("failed").Inc()
}

// IncReplayed counts one worker-side replay of a settlement event.
func (m *SettlementMetrics) IncReplayed() {
	if m == nil || m.replays == nil {
		return
	}
	m.replays.Inc()
}

// SetBacklog records the current number of unpublished outbox events.
func (m *SettlementMetrics) SetBacklog(n int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}
