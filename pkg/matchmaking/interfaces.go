// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaking

import (
	"time"

	"github.com/codeduel/matchmaking-engine/pkg/envelope"
)

/*
QueueStore is the holding area for waiting entries, keyed by (mode, userID).
It is the only shared mutable resource in the engine; every mutation goes
through one of these individually-atomic operations. TryClaim must be an
atomic compare-and-set against the entry's claim marker, safe under
concurrent callers (overlapping driver ticks, or a tick racing a player's
direct cancellation). Whichever of Dequeue and TryClaim lands first wins;
no half-claimed state is ever observable.
*/
type QueueStore interface {
	// Enqueue inserts or replaces the entry for entry.UserID, resetting its
	// queue position. It returns ErrAlreadyQueued when the player already
	// waits in a different mode and multi-mode queuing is disallowed, or
	// when the existing entry is claimed by an in-flight commit.
	Enqueue(scope *envelope.Scope, entry QueueEntry) (QueueEntry, error)

	// Dequeue removes the player's entry if present. It is idempotent and
	// reports whether anything was removed.
	Dequeue(scope *envelope.Scope, userID string) (bool, error)

	// Snapshot returns all entries for a mode ordered by QueuedAt ascending,
	// oldest first. The returned slice is a copy the caller may keep.
	Snapshot(scope *envelope.Scope, mode string) ([]QueueEntry, error)

	// Modes returns every mode that currently has at least one entry.
	Modes(scope *envelope.Scope) ([]string, error)

	// TryClaim marks the entry for (mode, userID) as claimed-for-pairing.
	// It returns nil when the entry no longer exists or is already claimed.
	TryClaim(scope *envelope.Scope, mode, userID string) (*ClaimToken, error)

	// Release reverts a claim without removing the entry, returning it to
	// the pool. A stale token (entry re-enqueued or claimed anew) is a no-op.
	Release(scope *envelope.Scope, token *ClaimToken) error

	// Remove permanently deletes a successfully committed entry. The token
	// must be the one returned by the claiming TryClaim.
	Remove(scope *envelope.Scope, token *ClaimToken) error
}

// Matcher computes disjoint proposed pairs from a snapshot of one mode's
// entries. It is read-only over the snapshot and never touches the store.
type Matcher interface {
	ProposePairs(scope *envelope.Scope, snapshot []QueueEntry, now time.Time) []ProposedPair
}

// RangePolicy maps an entry's elapsed wait to an allowed rating-distance
// ceiling. Implementations must be monotonically non-decreasing in wait time:
// a player's acceptable range never narrows while they keep waiting.
type RangePolicy interface {
	// AllowedRange returns the rating-distance ceiling for the entry as of now.
	AllowedRange(entry QueueEntry, now time.Time) int

	// IsDesperate reports whether the entry has waited past the desperation
	// timeout, making any opponent in mode acceptable.
	IsDesperate(entry QueueEntry, now time.Time) bool
}

// MatchCreator persists a match record for a committed pair. It is an
// external collaborator; a non-nil error triggers the committer's unwind.
type MatchCreator interface {
	CreateMatch(scope *envelope.Scope, player1ID, player2ID, mode string, puzzle Puzzle) (matchID string, err error)
}

// PuzzleGenerator produces challenge content for a committed pair. Failures
// here do not unwind a commit; the match proceeds with a zero Puzzle.
type PuzzleGenerator interface {
	GeneratePuzzle(scope *envelope.Scope, mode string, ratingAverage int) (Puzzle, error)
}

// PlayerNotifier pushes a match notification to a player. Delivery is
// fire-and-forget; failure never unwinds the match.
type PlayerNotifier interface {
	NotifyPlayer(scope *envelope.Scope, userID string, matchID string, opponent OpponentInfo)
}

// RatingProvider supplies a player's skill score, read once at enqueue time.
type RatingProvider interface {
	GetUserRating(scope *envelope.Scope, userID string) (int, error)
}
