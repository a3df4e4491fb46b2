// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package engine

import (
	"sync"
	"time"

	pie "github.com/elliotchance/pie/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/codeduel/matchmaking-engine/pkg/config"
	"github.com/codeduel/matchmaking-engine/pkg/constants"
	"github.com/codeduel/matchmaking-engine/pkg/envelope"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking/proximity"
	"github.com/codeduel/matchmaking-engine/pkg/metrics"
)

// Now is a variable that holds the current time function.
// This can be overridden for testing purposes.
var Now = time.Now

// Collaborators are the external services the engine drives. All are
// required except Notifier, which may be nil when nothing consumes pushes.
type Collaborators struct {
	Matches  matchmaking.MatchCreator
	Puzzles  matchmaking.PuzzleGenerator
	Notifier matchmaking.PlayerNotifier
	Ratings  matchmaking.RatingProvider
}

// Engine owns the matchmaking driver loop. It is explicitly constructed and
// explicitly started; nothing runs until Start, and Stop never interrupts a
// tick in progress.
type Engine struct {
	cfg       *config.Config
	store     matchmaking.QueueStore
	committer *Committer
	watchers  *watcherRegistry
	ratings   matchmaking.RatingProvider
	metrics   metrics.MatchmakingMetrics

	matcherMu sync.Mutex
	matchers  map[string]matchmaking.Matcher
	overrides map[string]config.EscalationOverride

	interval time.Duration
	maxWait  time.Duration

	// tickMu makes ticks single-flight: a manual RunOnce never overlaps the
	// scheduled tick. failures is only touched under tickMu.
	tickMu   sync.Mutex
	failures map[string]int

	mu       sync.Mutex
	running  bool
	stopped  bool
	stopChan chan struct{}
	nudge    chan struct{}
	wg       sync.WaitGroup
}

func New(cfg *config.Config, store matchmaking.QueueStore, collab Collaborators, mmMetrics metrics.MatchmakingMetrics, overrides map[string]config.EscalationOverride) *Engine {
	if mmMetrics == nil {
		mmMetrics = metrics.NewNoop()
	}
	if collab.Notifier == nil {
		collab.Notifier = noopNotifier{}
	}

	return &Engine{
		cfg:       cfg,
		store:     store,
		committer: NewCommitter(store, collab.Matches, collab.Puzzles, collab.Notifier, mmMetrics),
		watchers:  newWatcherRegistry(),
		ratings:   collab.Ratings,
		metrics:   mmMetrics,
		matchers:  make(map[string]matchmaking.Matcher),
		overrides: overrides,
		interval:  time.Duration(cfg.TickIntervalSecond) * time.Second,
		maxWait:   time.Duration(cfg.MaxWaitSecond) * time.Second,
		failures:  make(map[string]int),
		stopChan:  make(chan struct{}),
		nudge:     make(chan struct{}, 1),
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyPlayer(scope *envelope.Scope, userID string, matchID string, opponent matchmaking.OpponentInfo) {
}

// Start launches the repeating driver loop. Calling Start twice is a no-op.
func (e *Engine) Start(scope *envelope.Scope) {
	e.mu.Lock()
	if e.running || e.stopped {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	scope.Log.WithField("interval", e.interval).Info("matchmaking driver started")

	e.wg.Add(1)
	go e.loop(scope)
}

// Stop halts the loop after any tick in progress completes. Stopped is
// terminal; construct a new Engine to resume matchmaking.
func (e *Engine) Stop(scope *envelope.Scope) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.stopped = true
	e.mu.Unlock()

	close(e.stopChan)
	e.wg.Wait()
	scope.Log.Info("matchmaking driver stopped")
}

func (e *Engine) loop(scope *envelope.Scope) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.RunOnce(scope)

	for {
		select {
		case <-ticker.C:
			e.RunOnce(scope)
		case <-e.nudge:
			e.RunOnce(scope)
		case <-e.stopChan:
			return
		}
	}
}

// Enqueue places a player into the waiting pool and returns the channel on
// which their terminal search outcome will arrive.
func (e *Engine) Enqueue(rootScope *envelope.Scope, userID, mode string) (<-chan matchmaking.Outcome, error) {
	scope := rootScope.NewChildScope("Engine.Enqueue")
	defer scope.Finish()
	scope.SetAttributes(envelope.ModeTag, mode)

	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return nil, matchmaking.ErrEngineStopped
	}

	rating, err := e.ratings.GetUserRating(scope, userID)
	if err != nil {
		return nil, err
	}

	entry := matchmaking.QueueEntry{
		UserID:   userID,
		Rating:   rating,
		Mode:     mode,
		QueuedAt: Now(),
	}

	if _, err := e.store.Enqueue(scope, entry); err != nil {
		return nil, err
	}

	outcome := e.watchers.register(userID)

	// kick an out-of-band tick for snappier matching without disturbing the
	// regular schedule
	select {
	case e.nudge <- struct{}{}:
	default:
	}

	scope.Log.WithField("userID", userID).WithField("rating", rating).Info("player enqueued")

	return outcome, nil
}

// Cancel removes a player's search. It reports whether anything was removed;
// a cancellation racing an in-flight commit may lose, in which case the
// match stands.
func (e *Engine) Cancel(rootScope *envelope.Scope, userID string) (bool, error) {
	scope := rootScope.NewChildScope("Engine.Cancel")
	defer scope.Finish()

	removed, err := e.store.Dequeue(scope, userID)
	if err != nil {
		return false, err
	}
	if removed {
		e.watchers.notify(userID, matchmaking.Outcome{Reason: constants.OutcomeReasonCanceled})
		scope.Log.WithField("userID", userID).Info("search canceled")
	}

	return removed, nil
}

// RunOnce executes one full matchmaking pass immediately. Ticks are
// single-flight; a RunOnce overlapping the scheduled tick waits its turn.
func (e *Engine) RunOnce(rootScope *envelope.Scope) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	scope := rootScope.NewChildScope("Engine.tick")
	defer scope.Finish()

	now := Now()

	modes, err := e.store.Modes(scope)
	if err != nil {
		scope.Log.WithError(err).Error("failed to list active modes")
		return
	}

	seenPairs := make(map[string]bool)
	for _, mode := range modes {
		e.tickMode(scope, mode, now, seenPairs)
	}

	// drop failure counts for pairs no longer proposed, so stale pairings
	// never inherit another pairing's failure budget
	for key := range e.failures {
		if !seenPairs[key] {
			delete(e.failures, key)
		}
	}
}

func (e *Engine) tickMode(rootScope *envelope.Scope, mode string, now time.Time, seenPairs map[string]bool) {
	scope := rootScope.NewChildScope("Engine.tickMode")
	defer scope.Finish()
	scope.SetAttributes(envelope.ModeTag, mode)

	start := time.Now()
	defer func() {
		e.metrics.AddTickElapsedTimeMs(mode, constants.ProposePairsFunction, time.Since(start))
	}()

	e.evictStale(scope, mode, now)

	snapshot, err := e.store.Snapshot(scope, mode)
	if err != nil {
		scope.Log.WithError(err).Error("failed to snapshot queue")
		return
	}

	e.metrics.EntriesInQueue(mode, len(snapshot))
	e.logQueueSummary(scope, mode, snapshot, now)

	pairs := e.matcherFor(mode).ProposePairs(scope, snapshot, now)

	// pairs within one tick are committed sequentially; cross-process races
	// are handled by the claim protocol regardless of ordering
	for _, pair := range pairs {
		if time.Since(start) > constants.TickTimeLimit {
			scope.Log.Warn("tick time limit hit, deferring remaining pairs to next tick")
			break
		}
		seenPairs[pair.Key()] = true
		result := e.committer.Commit(scope, pair)

		switch result.Status {
		case matchmaking.CommitCommitted:
			delete(e.failures, pair.Key())
			e.watchers.notify(pair.A.UserID, matchmaking.Outcome{
				Reason:   constants.OutcomeReasonMatched,
				Mode:     mode,
				MatchID:  result.MatchID,
				Opponent: matchmaking.OpponentInfo{UserID: pair.B.UserID, Rating: pair.B.Rating},
			})
			e.watchers.notify(pair.B.UserID, matchmaking.Outcome{
				Reason:   constants.OutcomeReasonMatched,
				Mode:     mode,
				MatchID:  result.MatchID,
				Opponent: matchmaking.OpponentInfo{UserID: pair.A.UserID, Rating: pair.A.Rating},
			})
			e.metrics.AddSearchOutcome(mode, constants.OutcomeReasonMatched)
			e.metrics.AddSearchOutcome(mode, constants.OutcomeReasonMatched)

		case matchmaking.CommitFailed:
			e.failures[pair.Key()]++
			if e.failures[pair.Key()] >= e.cfg.CommitFailureLimit {
				delete(e.failures, pair.Key())
				e.evictUnavailable(scope, mode, pair)
			}

		case matchmaking.CommitLost:
			// surviving side, if still queued, is reconsidered next tick
		}
	}
}

// evictStale removes entries whose wait exceeded the maximum and reports the
// timeout to their watchers. Claiming first keeps eviction safe against an
// in-flight commit for the same entry.
func (e *Engine) evictStale(rootScope *envelope.Scope, mode string, now time.Time) {
	scope := rootScope.NewChildScope("Engine.evictStale")
	defer scope.Finish()

	snapshot, err := e.store.Snapshot(scope, mode)
	if err != nil {
		scope.Log.WithError(err).Error("failed to snapshot queue for eviction")
		return
	}

	for _, entry := range snapshot {
		if entry.WaitTime(now) < e.maxWait {
			continue
		}

		token, err := e.store.TryClaim(scope, mode, entry.UserID)
		if err != nil {
			scope.Log.WithError(err).WithField("userID", entry.UserID).Error("failed to claim stale entry")
			continue
		}
		if token == nil {
			continue
		}

		if err := e.store.Remove(scope, token); err != nil {
			scope.Log.WithError(err).WithField("userID", entry.UserID).Error("failed to remove stale entry")
			continue
		}

		e.watchers.notify(entry.UserID, matchmaking.Outcome{Reason: constants.OutcomeReasonTimedOut, Mode: mode})
		e.metrics.AddSearchOutcome(mode, constants.OutcomeReasonTimedOut)
		scope.Log.
			WithField("userID", entry.UserID).
			WithField("waited", entry.WaitTime(now)).
			Info("search timed out")
	}
}

// evictUnavailable drops both sides of a pair whose match creation kept
// failing, surfacing a user-visible signal instead of looping silently.
func (e *Engine) evictUnavailable(scope *envelope.Scope, mode string, pair matchmaking.ProposedPair) {
	for _, userID := range []string{pair.A.UserID, pair.B.UserID} {
		removed, err := e.store.Dequeue(scope, userID)
		if err != nil {
			scope.Log.WithError(err).WithField("userID", userID).Error("failed to evict after repeated commit failures")
			continue
		}
		if removed {
			e.watchers.notify(userID, matchmaking.Outcome{Reason: constants.OutcomeReasonUnavailable, Mode: mode})
			e.metrics.AddSearchOutcome(mode, constants.OutcomeReasonUnavailable)
		}
	}
	scope.Log.WithField("pair", pair.Key()).Warn("matchmaking temporarily unavailable for pair")
}

func (e *Engine) matcherFor(mode string) matchmaking.Matcher {
	e.matcherMu.Lock()
	defer e.matcherMu.Unlock()

	if m, ok := e.matchers[mode]; ok {
		return m
	}

	cfg := *e.cfg
	if override, ok := e.overrides[mode]; ok {
		cfg = cfg.WithOverride(override)
	}

	m := proximity.NewMatcher(proximity.NewRangePolicy(cfg))
	e.matchers[mode] = m
	return m
}

func (e *Engine) logQueueSummary(scope *envelope.Scope, mode string, snapshot []matchmaking.QueueEntry, now time.Time) {
	if len(snapshot) == 0 {
		return
	}

	waits := pie.Map(snapshot, func(entry matchmaking.QueueEntry) float64 {
		return entry.WaitTime(now).Seconds()
	})
	ratings := pie.Map(snapshot, func(entry matchmaking.QueueEntry) float64 {
		return float64(entry.Rating)
	})

	scope.Log.
		WithField("mode", mode).
		WithField("entries", len(snapshot)).
		WithField("meanWaitSec", stat.Mean(waits, nil)).
		WithField("stdDevWaitSec", stat.StdDev(waits, nil)).
		WithField("meanRating", stat.Mean(ratings, nil)).
		WithField("stdDevRating", stat.StdDev(ratings, nil)).
		Debug("queue summary")
}
