package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rangefinder_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	BuildFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangefinder_build_failures_total",
		Help: "Total number of parse builds rejected, by language and error code.",
	}, []string{"language", "code"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rangefinder_query_seconds",
		Help:    "Time spent running an extraction query against a parsed tree.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language", "capability"})

	QueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangefinder_query_errors_total",
		Help: "Total number of extraction calls that failed with a query error.",
	}, []string{"language", "capability"})

	GrammarLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangefinder_grammar_loads_total",
		Help: "Total number of underlying grammar loads, by outcome.",
	}, []string{"language", "outcome"})

	QueryCompilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangefinder_query_compiles_total",
		Help: "Total number of query compilations, by outcome.",
	}, []string{"language", "capability", "outcome"})

	FilesScannedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rangefinder_files_scanned_total",
		Help: "Total number of files processed by scans, by result.",
	}, []string{"result"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rangefinder_scan_seconds",
		Help:    "Wall-clock duration of a full scan.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangefinder_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WriteQueueEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangefinder_write_queue_enqueued_total",
		Help: "Total number of store writes accepted by the in-memory queue.",
	})

	WriteQueueDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangefinder_write_queue_dropped_total",
		Help: "Total number of store writes that bypassed a full queue.",
	})

	WriteQueueProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangefinder_write_queue_processed_total",
		Help: "Total number of queued store writes applied.",
	})

	WriteQueueApplyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rangefinder_write_queue_apply_errors_total",
		Help: "Total number of write batches that failed to apply.",
	})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rangefinder_write_queue_depth",
		Help: "Current number of store writes waiting in memory.",
	})

	WriteQueueFlushLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rangefinder_write_queue_flush_seconds",
		Help:    "Time spent applying one write batch.",
		Buckets: prometheus.DefBuckets,
	})
)
