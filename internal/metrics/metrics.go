// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the engine records into. A nil *Metrics is
// safe to use: all record methods are no-ops.
type Metrics struct {
	CompressionsTotal   prometheus.Counter
	CompressionsFailed  prometheus.Counter
	CompressionExpanded prometheus.Counter
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	SwapDuration        prometheus.Histogram
	SwapsTotal          prometheus.Counter
	SwapsCancelled      prometheus.Counter
	EvictionsTotal      prometheus.Counter
	ArchivedBytes       prometheus.Counter
}

// New creates and registers the engine collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CompressionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_compressions_total",
			Help: "Completed compression calls.",
		}),
		CompressionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_compressions_failed_total",
			Help: "Compression calls that returned an error.",
		}),
		CompressionExpanded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_compressions_expanded_total",
			Help: "Compression results discarded by the expansion guard.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_cache_hits_total",
			Help: "Block cache lookups that hit.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_cache_misses_total",
			Help: "Block cache lookups that missed.",
		}),
		SwapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "packrat_swap_duration_seconds",
			Help:    "Wall time of settled compaction swaps.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SwapsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_swaps_total",
			Help: "Settled compaction swaps.",
		}),
		SwapsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_swaps_cancelled_total",
			Help: "Compaction requests that returned a cancellation.",
		}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_evictions_total",
			Help: "History entries migrated to the evicted archive.",
		}),
		ArchivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packrat_archived_bytes_total",
			Help: "Bytes written to the write-once archive.",
		}),
	}

	reg.MustRegister(
		m.CompressionsTotal, m.CompressionsFailed, m.CompressionExpanded,
		m.CacheHits, m.CacheMisses,
		m.SwapDuration, m.SwapsTotal, m.SwapsCancelled,
		m.EvictionsTotal, m.ArchivedBytes,
	)
	return m
}

// The record methods below are nil-safe so call sites never need to guard.

func (m *Metrics) RecordCompression(err error, expanded bool) {
	if m == nil {
		return
	}
	if err != nil {
		m.CompressionsFailed.Inc()
		return
	}
	m.CompressionsTotal.Inc()
	if expanded {
		m.CompressionExpanded.Inc()
	}
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) RecordSwap(seconds float64) {
	if m == nil {
		return
	}
	m.SwapsTotal.Inc()
	m.SwapDuration.Observe(seconds)
}

func (m *Metrics) RecordSwapCancelled() {
	if m == nil {
		return
	}
	m.SwapsCancelled.Inc()
}

func (m *Metrics) RecordEviction(bytes int) {
	if m == nil {
		return
	}
	m.EvictionsTotal.Inc()
	m.ArchivedBytes.Add(float64(bytes))
}

func (m *Metrics) RecordArchivedBytes(bytes int) {
	if m == nil {
		return
	}
	m.ArchivedBytes.Add(float64(bytes))
}
