package core

// Metrics exposes Prometheus counters/gauges for the chain state
// engine. The teacher's go.mod carries prometheus/client_golang as an
// indirect dependency with no direct caller among the kept files; this
// gives it a concrete, bounded home (DESIGN.md).

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters and gauge BlockProducer, ChainDB and
// Mempool update.
type Metrics struct {
	BlocksAppended prometheus.Counter
	Rollbacks      prometheus.Counter
	MempoolSize    prometheus.Gauge
	Rejections     prometheus.Counter
}

// NewMetrics registers a fresh Metrics set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaindb_blocks_appended_total",
			Help: "Total number of blocks appended to the chain store.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chaindb_rollbacks_total",
			Help: "Total number of rollback_to invocations.",
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mempool_size",
			Help: "Current number of transactions held in the mempool.",
		}),
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validation_rejections_total",
			Help: "Total number of transactions or blocks rejected by validation.",
		}),
	}
	reg.MustRegister(m.BlocksAppended, m.Rollbacks, m.MempoolSize, m.Rejections)
	return m
}

// globalMetrics is registered against the default registry. It is the
// one Metrics set in use: NewBlockProducer, ChainDB.RollbackTo and the
// Mempool all update it, and none of them accepts another set.
var globalMetrics = NewMetrics(prometheus.DefaultRegisterer)
