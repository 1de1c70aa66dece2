// Package metrics provides the ambient Prometheus instrumentation a
// Search instance exposes: cycle/batch counters, collision counts,
// transposition hits, and arena utilization. Attaching metrics is
// optional -- every flow.Search works correctly with a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is one search instance's metric set, labeled by instance so
// multiple concurrent searches in the same process don't collide.
type Metrics struct {
	cycles            prometheus.Counter
	batchesIssued     prometheus.Counter
	batchSize         prometheus.Histogram
	collisions        prometheus.Counter
	transpositionHits prometheus.Counter
	nnEvaluations     prometheus.Counter
	arenaUtilization  prometheus.Gauge
	rootVisits        prometheus.Gauge
}

// New registers a fresh Metrics set under reg, labeled with instance.
// Pass prometheus.NewRegistry() (not the global DefaultRegisterer) in
// tests and multi-search processes to avoid duplicate-registration
// panics across instances.
func New(reg prometheus.Registerer, instance string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"instance": instance}

	return &Metrics{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "nnsearch",
			Name:        "cycles_total",
			Help:        "Number of Search Flow iterations completed.",
			ConstLabels: labels,
		}),
		batchesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "nnsearch",
			Name:        "nn_batches_total",
			Help:        "Number of batches submitted to the NN evaluator.",
			ConstLabels: labels,
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "nnsearch",
			Name:        "nn_batch_size",
			Help:        "Size of batches submitted to the NN evaluator.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 14),
		}),
		collisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "nnsearch",
			Name:        "selection_collisions_total",
			Help:        "Descents that landed on a node already selected this batch.",
			ConstLabels: labels,
		}),
		transpositionHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "nnsearch",
			Name:        "transposition_hits_total",
			Help:        "Leaves resolved via transposition linkage instead of the network.",
			ConstLabels: labels,
		}),
		nnEvaluations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "nnsearch",
			Name:        "nn_evaluations_total",
			Help:        "Individual positions evaluated by the network.",
			ConstLabels: labels,
		}),
		arenaUtilization: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "nnsearch",
			Name:        "arena_utilization_ratio",
			Help:        "Fraction of the node arena's capacity consumed.",
			ConstLabels: labels,
		}),
		rootVisits: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "nnsearch",
			Name:        "root_visits",
			Help:        "Completed visit count at the search root.",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) ObserveCycle()  { m.orNoop(func() { m.cycles.Inc() }) }
func (m *Metrics) ObserveBatch(size int) {
	m.orNoop(func() { m.batchesIssued.Inc(); m.batchSize.Observe(float64(size)) })
}
func (m *Metrics) ObserveCollisions(n int)           { m.orNoop(func() { m.collisions.Add(float64(n)) }) }
func (m *Metrics) ObserveTranspositionHits(n int)    { m.orNoop(func() { m.transpositionHits.Add(float64(n)) }) }
func (m *Metrics) ObserveNNEvaluations(n int)        { m.orNoop(func() { m.nnEvaluations.Add(float64(n)) }) }
func (m *Metrics) SetArenaUtilization(ratio float64) { m.orNoop(func() { m.arenaUtilization.Set(ratio) }) }
func (m *Metrics) SetRootVisits(n int32)             { m.orNoop(func() { m.rootVisits.Set(float64(n)) }) }

// orNoop lets every Observe* method be called unconditionally on a nil
// *Metrics (the common "metrics are optional" case) without every call
// site needing its own nil check.
func (m *Metrics) orNoop(f func()) {
	if m == nil {
		return
	}
	f()
}
