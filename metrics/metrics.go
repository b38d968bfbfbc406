package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var namespace = "tinystore"

var (
	// OperationsTotal counts every operation on a shared database, errors included
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Number of database operations partitioned by operation",
	}, []string{"op"})

	// OperationErrorsTotal counts operations that returned an error
	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Number of failed database operations partitioned by operation",
	}, []string{"op"})

	// OperationDuration includes the time spent waiting for the database lock
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Database operation latency partitioned by operation",
	}, []string{"op"})

	CompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compactions_total",
		Help:      "Number of successful compactions",
	})

	CompactionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "compaction_duration_seconds",
		Help:      "Time taken by successful compactions",
	})

	CompactionReclaimedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compaction_reclaimed_bytes_total",
		Help:      "Bytes of dead entries removed by compaction",
	})

	LogSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "log_size_bytes",
		Help:      "Size of the most recently touched log file",
	})

	LiveKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_keys",
		Help:      "Number of live keys in the most recently touched database",
	})

	// TornTailsTotal counts partial trailing entries cut off while opening a log
	TornTailsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "torn_tails_total",
		Help:      "Number of torn trailing log entries discarded during replay",
	})
)
