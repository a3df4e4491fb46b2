// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

// Package engine orchestrates the matchmaking driver loop: snapshotting the
// queue, proposing pairs, committing them atomically, and delivering search
// outcomes to waiting players.
package engine

import (
	"time"

	"github.com/codeduel/matchmaking-engine/pkg/constants"
	"github.com/codeduel/matchmaking-engine/pkg/envelope"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/metrics"
)

// Committer converts one proposed pair into a real match. The two-phase
// claim (claim A, claim B, unwind on partial failure) guarantees no entry is
// consumed by two different committed pairs, even when overlapping snapshots
// are processed concurrently.
type Committer struct {
	store    matchmaking.QueueStore
	matches  matchmaking.MatchCreator
	puzzles  matchmaking.PuzzleGenerator
	notifier matchmaking.PlayerNotifier
	metrics  metrics.MatchmakingMetrics
}

func NewCommitter(
	store matchmaking.QueueStore,
	matches matchmaking.MatchCreator,
	puzzles matchmaking.PuzzleGenerator,
	notifier matchmaking.PlayerNotifier,
	mmMetrics metrics.MatchmakingMetrics,
) *Committer {
	if mmMetrics == nil {
		mmMetrics = metrics.NewNoop()
	}
	return &Committer{
		store:    store,
		matches:  matches,
		puzzles:  puzzles,
		notifier: notifier,
		metrics:  mmMetrics,
	}
}

func (c *Committer) Commit(rootScope *envelope.Scope, pair matchmaking.ProposedPair) matchmaking.CommitResult {
	scope := rootScope.NewChildScope("Committer.Commit")
	defer scope.Finish()

	mode := pair.Mode()
	start := time.Now()
	defer func() {
		c.metrics.AddTickElapsedTimeMs(mode, constants.CommitPairFunction, time.Since(start))
	}()
	scope.SetAttributes(envelope.ModeTag, mode)
	scope.SetAttributes(envelope.PairTierTag, string(pair.Tier))

	tokenA, err := c.store.TryClaim(scope, mode, pair.A.UserID)
	if err != nil {
		scope.Log.WithError(err).Error("claim failed for first side")
		return matchmaking.CommitResult{Status: matchmaking.CommitFailed, Err: err}
	}
	if tokenA == nil {
		c.metrics.AddUncommittedReason(mode, constants.UncommittedReasonClaimRaceLost)
		return matchmaking.CommitResult{Status: matchmaking.CommitLost}
	}

	tokenB, err := c.store.TryClaim(scope, mode, pair.B.UserID)
	if err != nil {
		c.releaseQuietly(scope, tokenA)
		scope.Log.WithError(err).Error("claim failed for second side")
		return matchmaking.CommitResult{Status: matchmaking.CommitFailed, Err: err}
	}
	if tokenB == nil {
		// the other side vanished; return side A to the pool unclaimed
		c.releaseQuietly(scope, tokenA)
		c.metrics.AddUncommittedReason(mode, constants.UncommittedReasonClaimRaceLost)
		return matchmaking.CommitResult{Status: matchmaking.CommitLost}
	}

	// Puzzle generation failure does not unwind the commit: the match is
	// still created and carries a zero puzzle for a later retry-fetch.
	puzzle, err := c.puzzles.GeneratePuzzle(scope, mode, (pair.A.Rating+pair.B.Rating)/2)
	if err != nil {
		scope.Log.WithError(err).Warn("puzzle generation failed, committing match with empty puzzle")
		puzzle = matchmaking.Puzzle{}
	}

	matchID, err := c.matches.CreateMatch(scope, pair.A.UserID, pair.B.UserID, mode, puzzle)
	if err != nil {
		// downstream hiccup should not strand the players; both entries go
		// back into the pool and are retried next tick
		c.releaseQuietly(scope, tokenB)
		c.releaseQuietly(scope, tokenA)
		c.metrics.AddUncommittedReason(mode, constants.UncommittedReasonMatchCreationFailed)
		scope.Log.WithError(err).Error("match creation failed, pair released")
		return matchmaking.CommitResult{Status: matchmaking.CommitFailed, Err: err}
	}

	scope.SetAttributes(envelope.MatchIDTag, matchID)

	if err := c.store.Remove(scope, tokenA); err != nil {
		scope.Log.WithError(err).Error("failed to purge committed entry")
	}
	if err := c.store.Remove(scope, tokenB); err != nil {
		scope.Log.WithError(err).Error("failed to purge committed entry")
	}

	c.metrics.AddCommittedPair(mode, string(pair.Tier), pair.RatingDistance())

	// fire-and-forget; delivery failure never unwinds the match
	c.notifier.NotifyPlayer(scope, pair.A.UserID, matchID, matchmaking.OpponentInfo{UserID: pair.B.UserID, Rating: pair.B.Rating})
	c.notifier.NotifyPlayer(scope, pair.B.UserID, matchID, matchmaking.OpponentInfo{UserID: pair.A.UserID, Rating: pair.A.Rating})

	scope.Log.
		WithField("matchID", matchID).
		WithField("tier", pair.Tier).
		WithField("ratingDistance", pair.RatingDistance()).
		Info("pair committed")

	return matchmaking.CommitResult{Status: matchmaking.CommitCommitted, MatchID: matchID}
}

func (c *Committer) releaseQuietly(scope *envelope.Scope, token *matchmaking.ClaimToken) {
	if err := c.store.Release(scope, token); err != nil {
		scope.Log.WithError(err).WithField("userID", token.UserID).Error("failed to release claim")
	}
}
