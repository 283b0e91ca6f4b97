// Package observability exposes Prometheus collectors shared across the timer services.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mergeOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_timer",
		Subsystem: "merge",
		Name:      "runs_total",
		Help:      "Merge confirmation flows by mode and terminal state.",
	}, []string{"mode", "outcome"})

	mergeWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_timer",
		Subsystem: "merge",
		Name:      "writes_total",
		Help:      "Documents written by merges, labeled by kind (activity, record, memo).",
	}, []string{"kind"})

	mergeWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_timer",
		Subsystem: "merge",
		Name:      "memo_warnings_total",
		Help:      "Memos concatenated by a merge and flagged for manual cleanup.",
	})

	mergeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_timer",
		Subsystem: "merge",
		Name:      "execute_duration_seconds",
		Help:      "Time spent planning and writing one merge batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	purgedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_timer",
		Subsystem: "reservation",
		Name:      "purged_total",
		Help:      "Deletion reservations whose data has been purged.",
	})

	lastPurgeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_timer",
		Subsystem: "reservation",
		Name:      "last_purge_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed purge.",
	})
)

func init() {
	prometheus.MustRegister(mergeOutcomes, mergeWrites, mergeWarnings, mergeDuration, purgedCounter, lastPurgeGauge)
}

// RecordMergeOutcome counts one finished merge flow.
func RecordMergeOutcome(mode, outcome string) {
	mergeOutcomes.WithLabelValues(mode, outcome).Inc()
}

// RecordMergeWrites adds the documents written by one merge batch.
func RecordMergeWrites(activities, records, memos, warnings int, took time.Duration) {
	mergeWrites.WithLabelValues("activity").Add(float64(activities))
	mergeWrites.WithLabelValues("record").Add(float64(records))
	mergeWrites.WithLabelValues("memo").Add(float64(memos))
	mergeWarnings.Add(float64(warnings))
	mergeDuration.Observe(took.Seconds())
}

// RecordPurged updates the purge counter and watermark.
func RecordPurged(ts time.Time) {
	purgedCounter.Inc()
	if ts.IsZero() {
		return
	}
	lastPurgeGauge.Set(float64(ts.Unix()))
}
