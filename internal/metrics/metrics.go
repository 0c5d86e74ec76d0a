// Package metrics exposes the prometheus collectors SHI registers for its
// own operation: CAS contention, pending-IO volume, and liveness misses.
// Carried as ambient observability regardless of the spec's non-goals,
// which scope out replication/checkpoint-format/range-scans, not metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Store holds the counters/histograms for one SecondaryStore instance.
// Callers register it once per group (it carries the group name as a
// constant label) and pass it down to the store construction.
type Store struct {
	Inserts       prometheus.Counter
	RetryNow      prometheus.Counter
	VersionShift  prometheus.Counter
	ChainLength   prometheus.Histogram
	PendingReads  prometheus.Counter
	LivenessMiss  prometheus.Counter
	LivenessHit   prometheus.Counter
}

// NewStore builds and registers a Store's collectors under the given group
// label against reg. Passing a nil registry returns unregistered
// collectors, useful for tests that don't want to pollute the default
// registry.
func NewStore(reg prometheus.Registerer, group string) *Store {
	labels := prometheus.Labels{"group": group}
	s := &Store{
		Inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shi",
			Subsystem:   "secondarystore",
			Name:        "inserts_total",
			Help:        "Completed composite-key inserts (includes deletes, which are modeled as inserts).",
			ConstLabels: labels,
		}),
		RetryNow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shi",
			Subsystem:   "secondarystore",
			Name:        "retry_now_total",
			Help:        "Insert attempts abandoned and retried due to a downward-invariant CAS failure.",
			ConstLabels: labels,
		}),
		VersionShift: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shi",
			Subsystem:   "secondarystore",
			Name:        "version_shift_total",
			Help:        "Insert attempts aborted because a higher session version was observed mid-prepare.",
			ConstLabels: labels,
		}),
		ChainLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "shi",
			Subsystem:   "secondarystore",
			Name:        "chain_length",
			Help:        "Number of hops walked to satisfy a chain read.",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
			ConstLabels: labels,
		}),
		PendingReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shi",
			Subsystem:   "secondarystore",
			Name:        "pending_reads_total",
			Help:        "Chain reads that fell through to the evicted region and suspended.",
			ConstLabels: labels,
		}),
		LivenessMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shi",
			Subsystem:   "index",
			Name:        "liveness_miss_total",
			Help:        "Query results dropped because the primary chain no longer resolves to them.",
			ConstLabels: labels,
		}),
		LivenessHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "shi",
			Subsystem:   "index",
			Name:        "liveness_hit_total",
			Help:        "Query results confirmed live by the primary-chain walk.",
			ConstLabels: labels,
		}),
	}
	if reg != nil {
		reg.MustRegister(s.Inserts, s.RetryNow, s.VersionShift, s.ChainLength, s.PendingReads, s.LivenessMiss, s.LivenessHit)
	}
	return s
}
