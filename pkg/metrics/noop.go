// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package metrics

import "time"

type noopMetrics struct{}

// NewNoop returns a MatchmakingMetrics that records nothing. Used when no
// registry is wired, and by tests.
func NewNoop() MatchmakingMetrics {
	return noopMetrics{}
}

func (noopMetrics) EntriesInQueue(mode string, numEntries int) {}

func (noopMetrics) AddTickElapsedTimeMs(mode, function string, elapsedTime time.Duration) {}

func (noopMetrics) AddCommittedPair(mode, tier string, ratingDistance int) {}

func (noopMetrics) AddUncommittedReason(mode string, reason string) {}

func (noopMetrics) AddSearchOutcome(mode string, outcome string) {}
