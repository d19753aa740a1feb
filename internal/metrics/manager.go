// Package metrics holds the Prometheus instruments of the analytics service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests       *prometheus.CounterVec
	CounterFetches        *prometheus.CounterVec
	CounterFetchFailures  *prometheus.CounterVec
	CounterViolations     prometheus.Counter
	CounterUnresolved     prometheus.Counter
	CounterStaleDiscarded prometheus.Counter
	CounterRefreshCycles  *prometheus.CounterVec

	// gauges
	GaugeRequests prometheus.Gauge

	// histograms
	HistRequestDuration *prometheus.HistogramVec
	HistLoadDuration    prometheus.Histogram

	factory   promauto.Factory
	namespace string
	subsystem string
}

func NewTestManager() *Manager {
	return NewManager("freecoach", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("freecoach", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	m := &Manager{factory: factory, namespace: namespace, subsystem: subsystem}

	m.CounterRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "The total number of API requests",
	}, []string{"route", "status"})
	m.CounterFetches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "source_fetches_total",
		Help:      "Record fetches issued to the data source",
	}, []string{"resource"})
	m.CounterFetchFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "source_fetch_failures_total",
		Help:      "Record fetches that failed",
	}, []string{"resource"})
	m.CounterViolations = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "integrity_violations_total",
		Help:      "Sessions excluded for breaking an outcome invariant",
	})
	m.CounterUnresolved = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "unresolved_plan_references_total",
		Help:      "Realized sessions skipped because their plan no longer exists",
	})
	m.CounterStaleDiscarded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stale_snapshots_discarded_total",
		Help:      "Loaded snapshots dropped because a newer selection superseded them",
	})
	m.CounterRefreshCycles = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "refresh_cycles_total",
		Help:      "Refresh cycles by trigger and result",
	}, []string{"trigger", "result"})

	m.GaugeRequests = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})

	m.HistRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration of API requests in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route"})
	m.HistLoadDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "snapshot_load_duration_seconds",
		Help:      "Time to fetch one student's records from the source",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	return m
}

// CacheStats is implemented by source.Cache.
type CacheStats interface {
	HitCount() int64
	MissCount() int64
	EntryCount() int64
}

// RegisterCache exposes the cache's counters as gauges read at scrape time.
func (m *Manager) RegisterCache(c CacheStats) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits",
		Help:      "Cache lookups answered from memory",
	}, func() float64 { return float64(c.HitCount()) })
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses",
		Help:      "Cache lookups that went to the source",
	}, func() float64 { return float64(c.MissCount()) })
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_entries",
		Help:      "Live cache entries",
	}, func() float64 { return float64(c.EntryCount()) })
}
