// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"github.com/codeduel/matchmaking-engine/pkg/metrics"
)

func NewMetrics() metrics.MatchmakingMetrics {
	return metrics.NewNoop()
}
