// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus instrumentation of the entry
// server. The library itself stays metric-free; only the daemon records.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EntryOps tracks entry operations by op and outcome.
	EntryOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdict_entry_ops_total",
		Help: "Entry operations by op (get, head, put, delete) and status",
	}, []string{"op", "status"})

	// EntryOpDuration tracks entry operation latency.
	EntryOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cdict_entry_op_duration_seconds",
		Help:    "Entry operation latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op"})

	// EntryBytes tracks payload bytes moved through the server.
	EntryBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdict_entry_bytes_total",
		Help: "Payload bytes by direction (in, out)",
	}, []string{"direction"})

	// StoreEntries reports the current number of entries in the backend,
	// -1 when the backend cannot count cheaply.
	StoreEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cdict_store_entries",
		Help: "Current number of stored entries per backend",
	}, []string{"backend"})

	// StoreHitRatio reports hits/(hits+misses) seen by the backend since
	// start.
	StoreHitRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cdict_store_hit_ratio",
		Help: "Backend read hit ratio since process start",
	}, []string{"backend"})

	// AuthFailures counts rejected requests.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cdict_auth_failures_total",
		Help: "Requests rejected by token auth",
	})

	// DictRestores tracks dict restorations through the rendition endpoint.
	DictRestores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cdict_dict_restores_total",
		Help: "Dict restorations by outcome",
	}, []string{"outcome"})
)

// ObserveEntryOp records one entry operation with its latency.
func ObserveEntryOp(op, status string, d time.Duration) {
	EntryOps.WithLabelValues(op, status).Inc()
	EntryOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AddEntryBytes records payload volume.
func AddEntryBytes(direction string, n int) {
	if n > 0 {
		EntryBytes.WithLabelValues(direction).Add(float64(n))
	}
}

// SetStoreStats publishes a backend stats snapshot.
func SetStoreStats(backend string, entries int, hits, misses int64) {
	StoreEntries.WithLabelValues(backend).Set(float64(entries))
	if total := hits + misses; total > 0 {
		StoreHitRatio.WithLabelValues(backend).Set(float64(hits) / float64(total))
	}
}

// IncDictRestore records a dict restoration outcome.
func IncDictRestore(ok bool) {
	DictRestores.WithLabelValues(strconv.FormatBool(ok)).Inc()
}
