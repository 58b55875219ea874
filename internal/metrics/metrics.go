// Package metrics exposes pipeline counters through Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Drop reasons used as the "reason" label of yearend_rows_dropped_total.
const (
	ReasonBadDate   = "bad_date"
	ReasonBadCharge = "bad_charge"
	ReasonMalformed = "malformed"
)

// Metrics owns a private registry so that tests can build as many as they
// like without duplicate registration panics.
type Metrics struct {
	Registry *prometheus.Registry

	rowsRead         prometheus.Counter
	rowsKept         prometheus.Counter
	rowsDropped      *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	pipelineErrors   *prometheus.CounterVec
	datasets         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		rowsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "yearend_rows_read_total",
			Help: "Statement rows read.",
		}),
		rowsKept: factory.NewCounter(prometheus.CounterOpts{
			Name: "yearend_rows_kept_total",
			Help: "Statement rows that became transactions.",
		}),
		rowsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yearend_rows_dropped_total",
				Help: "Statement rows dropped during normalisation.",
			},
			[]string{"reason"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yearend_cache_hits_total",
				Help: "Memo cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yearend_cache_misses_total",
				Help: "Memo cache misses.",
			},
			[]string{"cache"},
		),
		pipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yearend_pipeline_duration_seconds",
				Help:    "Duration of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		pipelineErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yearend_pipeline_errors_total",
				Help: "Pipeline operations that failed, by kind.",
			},
			[]string{"operation", "kind"},
		),
		datasets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "yearend_datasets",
			Help: "Datasets currently held in memory.",
		}),
	}
}

// RecordRows adds one ingestion's row counts.
func (m *Metrics) RecordRows(read, kept, badDate, badCharge, malformed int) {
	m.rowsRead.Add(float64(read))
	m.rowsKept.Add(float64(kept))
	m.rowsDropped.WithLabelValues(ReasonBadDate).Add(float64(badDate))
	m.rowsDropped.WithLabelValues(ReasonBadCharge).Add(float64(badCharge))
	m.rowsDropped.WithLabelValues(ReasonMalformed).Add(float64(malformed))
}

func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// ObserveDuration records how long operation took.
func (m *Metrics) ObserveDuration(operation string, d time.Duration) {
	m.pipelineDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrError counts a failed operation under an error type such as
// "validation_error".
func (m *Metrics) IncrError(operation, kind string) {
	m.pipelineErrors.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) SetDatasets(n int) {
	m.datasets.Set(float64(n))
}

// Datasets returns the current value of the dataset gauge.
func (m *Metrics) Datasets() float64 {
	pb := &dto.Metric{}
	if err := m.datasets.Write(pb); err != nil || pb.Gauge == nil {
		return 0
	}
	return pb.Gauge.GetValue()
}

// Snapshot is a plain view of the counters, used by tests and debug output.
type Snapshot struct {
	RowsRead    float64
	RowsKept    float64
	RowsDropped map[string]float64
	CacheHits   map[string]float64
	CacheMisses map[string]float64
}

// Snapshot reads the current counter values for the given cache names.
func (m *Metrics) Snapshot(caches ...string) Snapshot {
	s := Snapshot{
		RowsRead:    counterValue(m.rowsRead),
		RowsKept:    counterValue(m.rowsKept),
		RowsDropped: make(map[string]float64),
		CacheHits:   make(map[string]float64),
		CacheMisses: make(map[string]float64),
	}
	for _, reason := range []string{ReasonBadDate, ReasonBadCharge, ReasonMalformed} {
		s.RowsDropped[reason] = counterValue(m.rowsDropped.WithLabelValues(reason))
	}
	for _, c := range caches {
		s.CacheHits[c] = counterValue(m.cacheHits.WithLabelValues(c))
		s.CacheMisses[c] = counterValue(m.cacheMisses.WithLabelValues(c))
	}
	return s
}

func counterValue(c prometheus.Counter) float64 {
	pb := &dto.Metric{}
	if err := c.Write(pb); err != nil {
		return 0
	}
	if pb.Counter != nil && pb.Counter.Value != nil {
		return *pb.Counter.Value
	}
	return 0
}

// ErrorCount returns how many failures were counted for operation and kind.
func (m *Metrics) ErrorCount(operation, kind string) float64 {
	return counterValue(m.pipelineErrors.WithLabelValues(operation, kind))
}
