// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package constants

import "time"

const (
	// TickTimeLimit bounds how long a single driver tick may spend
	// committing pairs before the remainder is deferred to the next tick.
	TickTimeLimit = 10 * time.Second
)

// Matchmaking pool modes. Any string is accepted as a mode; these are the
// ones the duel service queues into.
const (
	ModeRanked = "ranked"
	ModeCasual = "casual"
)

const (
	CommitPairFunction   = "commitPair"
	ProposePairsFunction = "proposePairs"

	// Uncommitted reason constants.
	UncommittedReasonClaimRaceLost       = "uncommitted_claim_race_lost"
	UncommittedReasonMatchCreationFailed = "uncommitted_match_creation_failed"
)

// Search outcome reason constants, reported to outcome watchers and metrics.
const (
	OutcomeReasonMatched     = "matched"
	OutcomeReasonTimedOut    = "search_timed_out"
	OutcomeReasonCanceled    = "canceled"
	OutcomeReasonUnavailable = "matchmaking_unavailable"
)
