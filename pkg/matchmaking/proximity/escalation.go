// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

// Package proximity implements the tiered rating-distance matcher and the
// wait-time range escalation policy behind it.
package proximity

import (
	"math"
	"time"

	"github.com/codeduel/matchmaking-engine/pkg/config"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/mathutil"
)

const (
	// Tier boundaries on elapsed wait. Distances per tier come from config;
	// these cutoffs are fixed.
	wideTierAfter      = time.Minute
	desperateTierAfter = 2 * time.Minute
)

// RangePolicy maps elapsed wait to an allowed rating-distance ceiling.
// Ceilings are forced non-decreasing across tiers so a waiting player can
// never regress to stricter matching.
type RangePolicy struct {
	closeMax           int
	wideMax            int
	desperateMax       int
	desperationTimeout time.Duration
}

var _ matchmaking.RangePolicy = (*RangePolicy)(nil)

func NewRangePolicy(cfg config.Config) *RangePolicy {
	closeMax := cfg.CloseMaxDistance
	wideMax := mathutil.Max(cfg.WideMaxDistance, closeMax)
	desperateMax := mathutil.Max(cfg.DesperateMaxDistance, wideMax)

	return &RangePolicy{
		closeMax:           closeMax,
		wideMax:            wideMax,
		desperateMax:       desperateMax,
		desperationTimeout: time.Duration(cfg.DesperationTimeoutSecond) * time.Second,
	}
}

func (p *RangePolicy) AllowedRange(entry matchmaking.QueueEntry, now time.Time) int {
	wait := entry.WaitTime(now)
	switch {
	case wait >= p.desperationTimeout:
		return math.MaxInt
	case wait >= desperateTierAfter:
		return p.desperateMax
	case wait >= wideTierAfter:
		return p.wideMax
	default:
		return p.closeMax
	}
}

func (p *RangePolicy) IsDesperate(entry matchmaking.QueueEntry, now time.Time) bool {
	return entry.WaitTime(now) >= p.desperationTimeout
}

// CloseMax exposes the flat close-tier ceiling used by the matcher's second pass.
func (p *RangePolicy) CloseMax() int {
	return p.closeMax
}
