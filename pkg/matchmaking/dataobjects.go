// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

// Package matchmaking provides the core interfaces and data structures for
// the duel matchmaking queue and pairing engine.
package matchmaking

import (
	"time"

	"github.com/codeduel/matchmaking-engine/pkg/mathutil"
)

// QueueEntry represents one waiting player in a matchmaking pool.
// A player holds at most one active entry at any time; re-enqueueing
// replaces the existing entry rather than duplicating it.
type QueueEntry struct {
	UserID   string    // Unique identifier of the waiting player
	Rating   int       // Skill score snapshot taken at enqueue time, not live-updated
	Mode     string    // Matchmaking pool selector; pairing never crosses modes
	QueuedAt time.Time // When this entry was inserted (used for queue ordering and escalation)
}

// WaitTime returns how long the entry has been queued as of now.
func (e QueueEntry) WaitTime(now time.Time) time.Duration {
	return now.Sub(e.QueuedAt)
}

// Tier identifies which escalation rule produced a proposed pair.
// Carried through for observability and testing, not required for correctness.
type Tier string

const (
	TierExact     Tier = "exact"
	TierClose     Tier = "close"
	TierWide      Tier = "wide"
	TierDesperate Tier = "desperate"
)

// ProposedPair is a transient pairing produced by the matcher and consumed by
// the committer within the same tick. It is never persisted.
type ProposedPair struct {
	A    QueueEntry
	B    QueueEntry
	Tier Tier
}

// RatingDistance returns the absolute rating gap between the two sides.
func (p ProposedPair) RatingDistance() int {
	return mathutil.Abs(p.A.Rating - p.B.Rating)
}

// Mode returns the pool both sides were queued in.
func (p ProposedPair) Mode() string {
	return p.A.Mode
}

// Key identifies the pair independent of side order, used to track repeated
// commit failures for the same pairing across ticks.
func (p ProposedPair) Key() string {
	if p.A.UserID < p.B.UserID {
		return p.A.UserID + "/" + p.B.UserID
	}
	return p.B.UserID + "/" + p.A.UserID
}

// ClaimToken proves a successful atomic claim on a queue entry. It must be
// passed back to either Release or Remove, and is useless to any other caller.
type ClaimToken struct {
	UserID string
	Mode   string
	ID     string // unique per claim, so a stale token can never release a newer claim
}

// CommitStatus is the terminal state of one commit attempt.
type CommitStatus string

const (
	// CommitCommitted means both sides were claimed and the match was created.
	CommitCommitted CommitStatus = "committed"
	// CommitLost means a side vanished or was claimed concurrently; the pair
	// is discarded for this tick and surviving entries are reconsidered next tick.
	CommitLost CommitStatus = "lost"
	// CommitFailed means the downstream match creation failed; both sides were
	// released back into the pool for retry.
	CommitFailed CommitStatus = "failed"
)

// CommitResult reports what happened to one proposed pair.
type CommitResult struct {
	Status  CommitStatus
	MatchID string // set only when Status is CommitCommitted
	Err     error  // set only when Status is CommitFailed
}

// TestCase is one input/expected pair of a duel puzzle.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Puzzle is the challenge content produced for a committed pair. A zero
// Puzzle marks a degraded match whose content is fetched later.
type Puzzle struct {
	Prompt    string     `json:"prompt"`
	TestCases []TestCase `json:"testCases"`
}

// IsZero reports whether no puzzle content was generated.
func (p Puzzle) IsZero() bool {
	return p.Prompt == "" && len(p.TestCases) == 0
}

// OpponentInfo is what a player learns about the other side of their match.
type OpponentInfo struct {
	UserID string `json:"userID"`
	Rating int    `json:"rating"`
}

// Outcome is the terminal result of one player's search, delivered on the
// channel returned from Enqueue.
type Outcome struct {
	Reason   string       // one of the constants.OutcomeReason* values
	Mode     string
	MatchID  string       // set only when Reason is matched
	Opponent OpponentInfo // set only when Reason is matched
}
