package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the graph core.
type Metrics struct {
	PersonsCreated   prometheus.Counter
	PersonsDeleted   prometheus.Counter
	EdgesAdded       prometheus.Counter
	EdgesRemoved     prometheus.Counter
	CycleRejections  prometheus.Counter
	AllocatorRetries prometheus.Counter
	TreeAssemblySec  prometheus.Histogram
	TreeCacheHits    prometheus.Counter
	TreeCacheMisses  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PersonsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_persons_created_total",
			Help: "Total number of persons created across all charts",
		}),
		PersonsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_persons_deleted_total",
			Help: "Total number of persons deleted across all charts",
		}),
		EdgesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_parent_edges_added_total",
			Help: "Total number of PARENT_OF edges committed",
		}),
		EdgesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_parent_edges_removed_total",
			Help: "Total number of PARENT_OF edges removed explicitly",
		}),
		CycleRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_cycle_rejections_total",
			Help: "Edge additions rejected because they would create a cycle",
		}),
		AllocatorRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_allocator_retries_total",
			Help: "Person id allocations that needed a retry",
		}),
		TreeAssemblySec: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineage_tree_assembly_duration_seconds",
			Help:    "Latency of full chart tree assembly",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		TreeCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_tree_cache_hits_total",
			Help: "Tree assemblies served from cache",
		}),
		TreeCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lineage_tree_cache_misses_total",
			Help: "Tree assemblies that fell through to the store",
		}),
	}
}

// Increment helpers tolerate a nil receiver so services can run without
// metrics wired (unit tests, embedded use).

func (m *Metrics) IncPersonsCreated() {
	if m != nil {
		m.PersonsCreated.Inc()
	}
}

func (m *Metrics) IncPersonsDeleted() {
	if m != nil {
		m.PersonsDeleted.Inc()
	}
}

func (m *Metrics) IncEdgesAdded() {
	if m != nil {
		m.EdgesAdded.Inc()
	}
}

func (m *Metrics) IncEdgesRemoved() {
	if m != nil {
		m.EdgesRemoved.Inc()
	}
}

func (m *Metrics) IncCycleRejections() {
	if m != nil {
		m.CycleRejections.Inc()
	}
}

func (m *Metrics) IncAllocatorRetries() {
	if m != nil {
		m.AllocatorRetries.Inc()
	}
}

func (m *Metrics) IncTreeCacheHits() {
	if m != nil {
		m.TreeCacheHits.Inc()
	}
}

func (m *Metrics) IncTreeCacheMisses() {
	if m != nil {
		m.TreeCacheMisses.Inc()
	}
}

// ObserveTreeAssembly records one assembly duration.
func (m *Metrics) ObserveTreeAssembly(start time.Time) {
	if m != nil {
		m.TreeAssemblySec.Observe(time.Since(start).Seconds())
	}
}
