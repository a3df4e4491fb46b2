// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	entriesInQueue        prometheus.GaugeVec
	tickElapsedTime       prometheus.HistogramVec
	committedPairs        prometheus.CounterVec
	committedPairDistance prometheus.HistogramVec
	uncommittedReasons    prometheus.CounterVec
	searchOutcomes        prometheus.CounterVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	entriesInQueue := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cd_mm_entries_in_queue",
			Help: "Number of waiting entries per matchmaking mode",
		}, []string{"mode"})

	//nolint:promlinter
	tickElapsedTime := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cd_mm_tick_elapsed_time_ms",
			Help:    "A histogram of driver tick function elapsed time in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"mode", "function"})

	committedPairs := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cd_mm_committed_pairs",
			Help: "A counter of committed pairs per escalation tier",
		}, []string{"mode", "tier"})

	//nolint:promlinter
	committedPairDistance := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cd_mm_committed_pair_rating_distance",
			Help:    "A histogram of rating distance in committed pairs",
			Buckets: []float64{0, 10, 25, 50, 100, 200, 300, 500, 1000},
		}, []string{"mode", "tier"})

	uncommittedReasons := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cd_mm_uncommitted_reasons",
			Help: "A counter of proposed pairs that did not commit, by reason",
		}, []string{"mode", "reason"})

	searchOutcomes := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cd_mm_search_outcomes",
			Help: "A counter of terminal search outcomes per mode",
		}, []string{"mode", "outcome"})

	return prometheusMetrics{
		entriesInQueue:        *entriesInQueue,
		tickElapsedTime:       *tickElapsedTime,
		committedPairs:        *committedPairs,
		committedPairDistance: *committedPairDistance,
		uncommittedReasons:    *uncommittedReasons,
		searchOutcomes:        *searchOutcomes,
	}
}

func (metrics prometheusMetrics) EntriesInQueue(mode string, numEntries int) {
	metrics.entriesInQueue.With(prometheus.Labels{"mode": mode}).Set(float64(numEntries))
}

func (metrics prometheusMetrics) AddTickElapsedTimeMs(mode, function string, elapsedTime time.Duration) {
	metrics.tickElapsedTime.With(prometheus.Labels{"mode": mode, "function": function}).Observe(float64(elapsedTime.Milliseconds()))
}

func (metrics prometheusMetrics) AddCommittedPair(mode, tier string, ratingDistance int) {
	metrics.committedPairs.With(prometheus.Labels{"mode": mode, "tier": tier}).Add(1)
	metrics.committedPairDistance.With(prometheus.Labels{"mode": mode, "tier": tier}).Observe(float64(ratingDistance))
}

func (metrics prometheusMetrics) AddUncommittedReason(mode string, reason string) {
	metrics.uncommittedReasons.With(prometheus.Labels{"mode": mode, "reason": reason}).Add(1)
}

func (metrics prometheusMetrics) AddSearchOutcome(mode string, outcome string) {
	metrics.searchOutcomes.With(prometheus.Labels{"mode": mode, "outcome": outcome}).Add(1)
}
