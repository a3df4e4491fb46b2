// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MatchmakingMetrics interface {
	EntriesInQueue(mode string, numEntries int)
	AddTickElapsedTimeMs(mode, function string, elapsedTime time.Duration)
	AddCommittedPair(mode, tier string, ratingDistance int)
	AddUncommittedReason(mode string, reason string)
	AddSearchOutcome(mode string, outcome string)
}

func NewMetrics(registry *prometheus.Registry) MatchmakingMetrics {
	return setupPrometheusMetrics(registry)
}
