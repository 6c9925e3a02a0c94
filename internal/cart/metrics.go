package cart

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opAdd       = "add"
	opIncrement = "increment"
	opDecrement = "decrement"

	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultUnmatched = "unmatched"
)

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	Mutations    *prometheus.CounterVec
	Writes       *prometheus.CounterVec
	WriteLatency prometheus.Histogram
	Coalesced    prometheus.Counter
	OpenCarts    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_mutations_total",
				Help: "Cart mutations by operation and outcome",
			},
			[]string{"op", "result"},
		),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_snapshot_writes_total",
				Help: "Snapshot writes to the storage slot",
			},
			[]string{"result"},
		),
		WriteLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cart_snapshot_write_duration_seconds",
				Help:    "Snapshot write latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		Coalesced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cart_snapshot_writes_coalesced_total",
				Help: "Snapshots superseded by a newer one before being written",
			},
		),
		OpenCarts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cart_open_carts",
				Help: "Carts currently loaded by the provider",
			},
		),
	}

	reg.MustRegister(m.Mutations, m.Writes, m.WriteLatency, m.Coalesced, m.OpenCarts)
	return m
}

func (m *Metrics) mutation(op, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) write(err error, d time.Duration, batch int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Writes.WithLabelValues(result).Inc()
	m.WriteLatency.Observe(d.Seconds())
	if batch > 1 {
		m.Coalesced.Add(float64(batch - 1))
	}
}

func (m *Metrics) openCarts(delta float64) {
	if m == nil {
		return
	}
	m.OpenCarts.Add(delta)
}
