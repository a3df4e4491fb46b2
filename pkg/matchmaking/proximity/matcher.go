// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package proximity

import (
	"sort"
	"time"

	"gopkg.in/typ.v4/sync2"

	"github.com/codeduel/matchmaking-engine/pkg/envelope"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/mathutil"
)

// matchedPool holds reusable matched-flag scratch slices across ticks.
var matchedPool = &sync2.Pool[[]bool]{
	New: func() []bool {
		return make([]bool, 0, 64)
	},
}

// Matcher produces disjoint pairs from a snapshot using four escalating
// passes: exact rating, close distance, per-entry widened distance, and a
// desperation pass that accepts any opponent. Pairing always favors the
// longest-waiting entries first.
type Matcher struct {
	policy *RangePolicy
}

var _ matchmaking.Matcher = (*Matcher)(nil)

func NewMatcher(policy *RangePolicy) *Matcher {
	return &Matcher{policy: policy}
}

func (m *Matcher) ProposePairs(rootScope *envelope.Scope, snapshot []matchmaking.QueueEntry, now time.Time) []matchmaking.ProposedPair {
	scope := rootScope.NewChildScope("Matcher.ProposePairs")
	defer scope.Finish()

	if len(snapshot) < 2 {
		return nil
	}

	// work over a sorted copy so pairing favors the oldest entries even if
	// the store handed us an unordered snapshot
	entries := make([]matchmaking.QueueEntry, len(snapshot))
	copy(entries, snapshot)
	sortOldestFirst(entries)

	matched := matchedPool.Get()[:0]
	defer func() { matchedPool.Put(matched[:0]) }()
	for range entries {
		matched = append(matched, false)
	}

	var pairs []matchmaking.ProposedPair

	pairs = m.exactPass(entries, matched, pairs)
	pairs = m.closePass(entries, matched, pairs)
	pairs = m.widePass(entries, matched, now, pairs)
	pairs = m.desperationPass(entries, matched, now, pairs)

	scope.SetAttributes("snapshot_size", len(entries))
	scope.SetAttributes("pairs_proposed", len(pairs))
	scope.Log.WithField("pairs", len(pairs)).WithField("entries", len(entries)).Debug("pairs proposed")

	return pairs
}

// exactPass pairs entries with identical ratings, oldest first within each
// rating bucket. Leftover singletons carry to the next pass.
func (m *Matcher) exactPass(entries []matchmaking.QueueEntry, matched []bool, pairs []matchmaking.ProposedPair) []matchmaking.ProposedPair {
	for i := range entries {
		if matched[i] {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if matched[j] || entries[j].Rating != entries[i].Rating {
				continue
			}
			matched[i], matched[j] = true, true
			pairs = append(pairs, matchmaking.ProposedPair{A: entries[i], B: entries[j], Tier: matchmaking.TierExact})
			break
		}
	}
	return pairs
}

// closePass pairs each remaining entry with its nearest-rating candidate
// within the flat close-tier distance.
func (m *Matcher) closePass(entries []matchmaking.QueueEntry, matched []bool, pairs []matchmaking.ProposedPair) []matchmaking.ProposedPair {
	for i := range entries {
		if matched[i] {
			continue
		}
		j := nearestCandidate(entries, matched, i, m.policy.CloseMax())
		if j < 0 {
			continue
		}
		matched[i], matched[j] = true, true
		pairs = append(pairs, matchmaking.ProposedPair{A: entries[i], B: entries[j], Tier: matchmaking.TierClose})
	}
	return pairs
}

// widePass repeats the nearest-candidate scan with each seeker's own
// escalated ceiling. Entries are oldest first, so a seeker's ceiling never
// exceeds that of the earlier entry of any pair it forms. Seekers past the
// desperation timeout are left for the desperation pass, which prefers the
// longest-waiting opponent over the nearest one.
func (m *Matcher) widePass(entries []matchmaking.QueueEntry, matched []bool, now time.Time, pairs []matchmaking.ProposedPair) []matchmaking.ProposedPair {
	for i := range entries {
		if matched[i] || m.policy.IsDesperate(entries[i], now) {
			continue
		}
		j := nearestCandidate(entries, matched, i, m.policy.AllowedRange(entries[i], now))
		if j < 0 {
			continue
		}
		matched[i], matched[j] = true, true
		pairs = append(pairs, matchmaking.ProposedPair{A: entries[i], B: entries[j], Tier: matchmaking.TierWide})
	}
	return pairs
}

// desperationPass pairs entries past the desperation timeout with the
// longest-waiting remaining entry, regardless of distance.
func (m *Matcher) desperationPass(entries []matchmaking.QueueEntry, matched []bool, now time.Time, pairs []matchmaking.ProposedPair) []matchmaking.ProposedPair {
	for i := range entries {
		if matched[i] || !m.policy.IsDesperate(entries[i], now) {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			if matched[j] {
				continue
			}
			matched[i], matched[j] = true, true
			pairs = append(pairs, matchmaking.ProposedPair{A: entries[i], B: entries[j], Tier: matchmaking.TierDesperate})
			break
		}
	}
	return pairs
}

// nearestCandidate returns the index of the unmatched entry after i with the
// smallest rating distance within maxDistance, or -1. Equally-distant
// candidates resolve to the earlier-queued one, which is the lower index
// because entries are sorted oldest first.
func nearestCandidate(entries []matchmaking.QueueEntry, matched []bool, i, maxDistance int) int {
	best := -1
	bestDistance := 0
	for j := i + 1; j < len(entries); j++ {
		if matched[j] {
			continue
		}
		distance := mathutil.Abs(entries[i].Rating - entries[j].Rating)
		if distance > maxDistance {
			continue
		}
		if best == -1 || distance < bestDistance {
			best = j
			bestDistance = distance
		}
	}
	return best
}

func sortOldestFirst(entries []matchmaking.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].QueuedAt.Equal(entries[j].QueuedAt) {
			return entries[i].QueuedAt.Before(entries[j].QueuedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})
}
