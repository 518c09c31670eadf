// metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits partitioned by key class.",
		},
		[]string{"cache"},
	)
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses partitioned by key class.",
		},
		[]string{"cache"},
	)
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "pdp",
			Name:      "decisions_total",
			Help:      "Authorization decisions partitioned by result and reason code.",
		},
		[]string{"result", "reason"},
	)
	AuditFlushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "audit",
			Name:      "flushed_total",
			Help:      "Audit records successfully written to storage.",
		},
	)
	AuditFlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "audit",
			Name:      "flush_failures_total",
			Help:      "Failed audit batch write attempts, including retried ones.",
		},
	)
	AuditDroppedOverflow = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "audit",
			Name:      "dropped_overflow_total",
			Help:      "Audit records dropped because the buffer hit its capacity bound.",
		},
	)
	AuditLostRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "audit",
			Name:      "lost_records_total",
			Help:      "Audit records dropped after exhausting write retries.",
		},
	)
	AuditBuffered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gatewarden",
			Subsystem: "audit",
			Name:      "buffered",
			Help:      "Audit records currently awaiting flush.",
		},
	)
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "retention",
			Name:      "sweep_runs_total",
			Help:      "Retention sweep runs partitioned by result.",
		},
		[]string{"result"},
	)
	SweepDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewarden",
			Subsystem: "retention",
			Name:      "sweep_deleted_total",
			Help:      "Total audit records purged by retention sweeps.",
		},
	)
)
