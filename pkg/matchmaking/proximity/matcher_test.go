// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package proximity

import (
	"testing"
	"time"

	"github.com/onsi/gomega"

	"github.com/codeduel/matchmaking-engine/pkg/constants"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/testsetup"
)

func newTestMatcher() *Matcher {
	return NewMatcher(NewRangePolicy(defaultTestConfig()))
}

func snapshotEntry(userID string, rating int, queuedAt time.Time) matchmaking.QueueEntry {
	return matchmaking.QueueEntry{
		UserID:   userID,
		Rating:   rating,
		Mode:     constants.ModeRanked,
		QueuedAt: queuedAt,
	}
}

func pairedUsers(pairs []matchmaking.ProposedPair) map[string]bool {
	users := map[string]bool{}
	for _, p := range pairs {
		users[p.A.UserID] = true
		users[p.B.UserID] = true
	}
	return users
}

func TestProposePairsExactRatingFirst(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()
	queuedAt := now.Add(-10 * time.Second)

	snapshot := []matchmaking.QueueEntry{
		snapshotEntry("alpha", 1500, queuedAt),
		snapshotEntry("bravo", 1500, queuedAt),
		snapshotEntry("charlie", 1600, queuedAt),
		snapshotEntry("delta", 1700, queuedAt),
	}

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).ToNot(gomega.BeEmpty())
	g.Expect(pairs[0].Tier).To(gomega.Equal(matchmaking.TierExact))
	g.Expect(pairs[0].Key()).To(gomega.Equal("alpha/bravo"))
}

func TestProposePairsEqualDistancePrefersEarlierQueued(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	// seeker at 1500 sees two candidates 30 points away, one on each side;
	// the older one must win
	snapshot := []matchmaking.QueueEntry{
		snapshotEntry("late", 1530, now.Add(-5*time.Second)),
		snapshotEntry("seeker", 1500, now.Add(-30*time.Second)),
		snapshotEntry("early", 1470, now.Add(-20*time.Second)),
	}

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).To(gomega.HaveLen(1))
	g.Expect(pairs[0].Key()).To(gomega.Equal("early/seeker"))
	g.Expect(pairs[0].Tier).To(gomega.Equal(matchmaking.TierClose))
}

func TestProposePairsRespectsCloseCeiling(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()
	queuedAt := now.Add(-10 * time.Second)

	// 51 points apart, both fresh: outside the close ceiling, inside nothing else yet
	snapshot := []matchmaking.QueueEntry{
		snapshotEntry("alpha", 1500, queuedAt),
		snapshotEntry("bravo", 1551, queuedAt),
	}

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).To(gomega.BeEmpty())
}

func TestProposePairsWideTierUsesSeekerCeiling(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	// 150 points apart: only pairable once the seeker's wait unlocks the wide tier
	snapshot := []matchmaking.QueueEntry{
		snapshotEntry("veteran", 1500, now.Add(-90*time.Second)),
		snapshotEntry("rookie", 1650, now.Add(-80*time.Second)),
	}

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).To(gomega.HaveLen(1))
	g.Expect(pairs[0].Tier).To(gomega.Equal(matchmaking.TierWide))
	g.Expect(pairs[0].RatingDistance()).To(gomega.Equal(150))
}

func TestProposePairsDesperationIgnoresDistance(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	snapshot := []matchmaking.QueueEntry{
		snapshotEntry("stranded", 1200, now.Add(-131*time.Second)),
		snapshotEntry("fresh", 2400, now.Add(-time.Second)),
	}

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).To(gomega.HaveLen(1))
	g.Expect(pairs[0].Tier).To(gomega.Equal(matchmaking.TierDesperate))
	g.Expect(pairs[0].Key()).To(gomega.Equal("fresh/stranded"))
}

func TestProposePairsAreDisjoint(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	snapshot := make([]matchmaking.QueueEntry, 0, 9)
	for i := 0; i < 9; i++ {
		snapshot = append(snapshot, snapshotEntry(
			string(rune('a'+i)),
			1500+i*10,
			now.Add(-time.Duration(i)*time.Second),
		))
	}

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).To(gomega.HaveLen(4), "an odd snapshot leaves exactly one entry unmatched")
	seen := map[string]int{}
	for _, p := range pairs {
		g.Expect(p.A.UserID).ToNot(gomega.Equal(p.B.UserID))
		seen[p.A.UserID]++
		seen[p.B.UserID]++
	}
	for userID, count := range seen {
		g.Expect(count).To(gomega.Equal(1), "user %s appears in more than one pair", userID)
	}
}

func TestProposePairsDeterministicAcrossSnapshotOrder(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	forward := []matchmaking.QueueEntry{
		snapshotEntry("alpha", 1490, now.Add(-40*time.Second)),
		snapshotEntry("bravo", 1510, now.Add(-30*time.Second)),
		snapshotEntry("charlie", 1500, now.Add(-20*time.Second)),
		snapshotEntry("delta", 1520, now.Add(-10*time.Second)),
	}
	reversed := make([]matchmaking.QueueEntry, len(forward))
	for i, e := range forward {
		reversed[len(forward)-1-i] = e
	}

	matcher := newTestMatcher()
	first := matcher.ProposePairs(g.TestScope, forward, now)
	second := matcher.ProposePairs(g.TestScope, reversed, now)

	g.Expect(second).To(gomega.Equal(first))
}

func TestProposePairsTooFewEntries(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	matcher := newTestMatcher()
	g.Expect(matcher.ProposePairs(g.TestScope, nil, now)).To(gomega.BeNil())
	g.Expect(matcher.ProposePairs(g.TestScope, []matchmaking.QueueEntry{
		snapshotEntry("alone", 1500, now),
	}, now)).To(gomega.BeNil())
}

func TestProposePairsLeavesSnapshotUntouched(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	now := time.Now()

	snapshot := []matchmaking.QueueEntry{
		snapshotEntry("newer", 1500, now.Add(-5*time.Second)),
		snapshotEntry("older", 1500, now.Add(-50*time.Second)),
	}
	original := make([]matchmaking.QueueEntry, len(snapshot))
	copy(original, snapshot)

	pairs := newTestMatcher().ProposePairs(g.TestScope, snapshot, now)

	g.Expect(pairs).To(gomega.HaveLen(1))
	g.Expect(snapshot).To(gomega.Equal(original))
	g.Expect(pairedUsers(pairs)).To(gomega.HaveLen(2))
}
