// Package metrics defines the Prometheus collectors of the versioning core.
//
// Collectors are registered on a caller-supplied registerer so tests can
// use an isolated prometheus.NewRegistry. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "isaac"

// Label values.
const (
	StampCommitted = "committed"
	StampPending   = "pending"

	MergeIdentical   = "identical"
	MergeCombined    = "combined"
	MergeUnmergeable = "unmergeable"

	WriteDirect = "direct"
	WriteMerged = "merged"
)

// Metrics holds the core's collectors.
type Metrics struct {
	StampsInterned *prometheus.CounterVec
	StampLookups   prometheus.Counter
	Merges         *prometheus.CounterVec
	StoreWrites    *prometheus.CounterVec
	RecordsSkipped prometheus.Counter
}

// New creates the collectors and registers them on reg.
// Passing nil creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StampsInterned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stamp",
				Name:      "interned_total",
				Help:      "Stamp sequences allocated, by kind (committed, pending)",
			},
			[]string{"kind"},
		),
		StampLookups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stamp",
				Name:      "fast_path_hits_total",
				Help:      "Intern calls answered from an existing sequence",
			},
		),
		Merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "merge",
				Name:      "operations_total",
				Help:      "Chronicle byte merges, by outcome",
			},
			[]string{"outcome"},
		),
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "writes_total",
				Help:      "Chronicle writes, by mode (direct, merged)",
			},
			[]string{"mode"},
		),
		RecordsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "codec",
				Name:      "records_skipped_total",
				Help:      "Version records skipped on read because their stamp could not be resolved",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StampsInterned, m.StampLookups, m.Merges, m.StoreWrites, m.RecordsSkipped)
	}
	return m
}

// StampInterned counts a newly allocated stamp sequence.
func (m *Metrics) StampInterned(kind string) {
	if m == nil {
		return
	}
	m.StampsInterned.WithLabelValues(kind).Inc()
}

// StampFastPath counts an intern call served by an existing sequence.
func (m *Metrics) StampFastPath() {
	if m == nil {
		return
	}
	m.StampLookups.Inc()
}

// Merge counts a merge by outcome.
func (m *Metrics) Merge(outcome string) {
	if m == nil {
		return
	}
	m.Merges.WithLabelValues(outcome).Inc()
}

// StoreWrite counts a persisted chronicle by mode.
func (m *Metrics) StoreWrite(mode string) {
	if m == nil {
		return
	}
	m.StoreWrites.WithLabelValues(mode).Inc()
}

// RecordSkipped counts a version record dropped on read.
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.RecordsSkipped.Inc()
}
