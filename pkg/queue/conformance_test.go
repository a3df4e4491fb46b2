// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeduel/matchmaking-engine/pkg/constants"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/testsetup"
)

// runMultiModeSmoke checks the multi-mode policy on a store built with
// multi-mode queuing allowed.
func runMultiModeSmoke(t *testing.T, store matchmaking.QueueStore) {
	scope := testsetup.NewTestScope()

	_, err := store.Enqueue(scope, matchmaking.QueueEntry{UserID: "alice", Rating: 1200, Mode: constants.ModeRanked, QueuedAt: time.Now()})
	require.NoError(t, err)
	_, err = store.Enqueue(scope, matchmaking.QueueEntry{UserID: "alice", Rating: 1200, Mode: constants.ModeCasual, QueuedAt: time.Now()})
	require.NoError(t, err)

	// cancel removes the player from every pool at once
	removed, err := store.Dequeue(scope, "alice")
	require.NoError(t, err)
	assert.True(t, removed)

	for _, mode := range []string{constants.ModeRanked, constants.ModeCasual} {
		snapshot, err := store.Snapshot(scope, mode)
		require.NoError(t, err)
		assert.Empty(t, snapshot)
	}
}

// runStoreConformance runs the behavior suite every QueueStore must satisfy.
// newStore must return an empty store disallowing multi-mode queuing.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) matchmaking.QueueStore) {
	base := time.Now()

	entry := func(userID string, rating int, offset time.Duration) matchmaking.QueueEntry {
		return matchmaking.QueueEntry{
			UserID:   userID,
			Rating:   rating,
			Mode:     constants.ModeRanked,
			QueuedAt: base.Add(offset),
		}
	}

	t.Run("snapshot is ordered oldest first", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("bob", 1300, 2*time.Second))
		require.NoError(t, err)
		_, err = store.Enqueue(scope, entry("alice", 1200, time.Second))
		require.NoError(t, err)
		_, err = store.Enqueue(scope, entry("carol", 1400, 3*time.Second))
		require.NoError(t, err)

		snapshot, err := store.Snapshot(scope, constants.ModeRanked)
		require.NoError(t, err)
		require.Len(t, snapshot, 3)
		assert.Equal(t, "alice", snapshot[0].UserID)
		assert.Equal(t, "bob", snapshot[1].UserID)
		assert.Equal(t, "carol", snapshot[2].UserID)
	})

	t.Run("re-enqueue replaces and resets queue position", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)
		_, err = store.Enqueue(scope, entry("bob", 1300, time.Second))
		require.NoError(t, err)
		_, err = store.Enqueue(scope, entry("alice", 1250, 2*time.Second))
		require.NoError(t, err)

		snapshot, err := store.Snapshot(scope, constants.ModeRanked)
		require.NoError(t, err)
		require.Len(t, snapshot, 2)
		assert.Equal(t, "bob", snapshot[0].UserID)
		assert.Equal(t, "alice", snapshot[1].UserID)
		assert.Equal(t, 1250, snapshot[1].Rating)
	})

	t.Run("enqueue in a second mode is rejected", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		casual := entry("alice", 1200, time.Second)
		casual.Mode = constants.ModeCasual
		_, err = store.Enqueue(scope, casual)
		assert.ErrorIs(t, err, matchmaking.ErrAlreadyQueued)
	})

	t.Run("dequeue is idempotent", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		removed, err := store.Dequeue(scope, "alice")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.Dequeue(scope, "alice")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("claim is exclusive until released", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		token, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		require.NotNil(t, token)

		second, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		assert.Nil(t, second)

		require.NoError(t, store.Release(scope, token))

		third, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		assert.NotNil(t, third)
	})

	t.Run("claim on a missing entry returns nil", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		token, err := store.TryClaim(scope, constants.ModeRanked, "ghost")
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("remove deletes the claimed entry", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		token, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		require.NotNil(t, token)
		require.NoError(t, store.Remove(scope, token))

		snapshot, err := store.Snapshot(scope, constants.ModeRanked)
		require.NoError(t, err)
		assert.Empty(t, snapshot)

		// the player can queue again afterwards
		_, err = store.Enqueue(scope, entry("alice", 1200, time.Second))
		assert.NoError(t, err)
	})

	t.Run("stale token cannot touch a newer claim", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		stale, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		require.NotNil(t, stale)
		require.NoError(t, store.Release(scope, stale))

		fresh, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		require.NotNil(t, fresh)

		// stale release and remove are both no-ops against the fresh claim
		require.NoError(t, store.Release(scope, stale))
		blocked, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		assert.Nil(t, blocked)

		require.NoError(t, store.Remove(scope, stale))
		snapshot, err := store.Snapshot(scope, constants.ModeRanked)
		require.NoError(t, err)
		assert.Len(t, snapshot, 1)
	})

	t.Run("dequeue loses against an earlier claim", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		token, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		require.NotNil(t, token)

		removed, err := store.Dequeue(scope, "alice")
		require.NoError(t, err)
		assert.False(t, removed)

		require.NoError(t, store.Remove(scope, token))
	})

	t.Run("enqueue during an in-flight claim is rejected", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		token, err := store.TryClaim(scope, constants.ModeRanked, "alice")
		require.NoError(t, err)
		require.NotNil(t, token)

		_, err = store.Enqueue(scope, entry("alice", 1200, time.Second))
		assert.ErrorIs(t, err, matchmaking.ErrAlreadyQueued)

		require.NoError(t, store.Release(scope, token))
	})

	t.Run("concurrent claims elect exactly one winner", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)

		const contenders = 16
		var wg sync.WaitGroup
		tokens := make([]*matchmaking.ClaimToken, contenders)
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				token, err := store.TryClaim(scope, constants.ModeRanked, "alice")
				assert.NoError(t, err)
				tokens[i] = token
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, token := range tokens {
			if token != nil {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("modes lists only pools with entries", func(t *testing.T) {
		scope := testsetup.NewTestScope()
		store := newStore(t)

		_, err := store.Enqueue(scope, entry("alice", 1200, 0))
		require.NoError(t, err)
		casual := entry("bob", 1300, time.Second)
		casual.Mode = constants.ModeCasual
		_, err = store.Enqueue(scope, casual)
		require.NoError(t, err)

		modes, err := store.Modes(scope)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{constants.ModeRanked, constants.ModeCasual}, modes)

		_, err = store.Dequeue(scope, "bob")
		require.NoError(t, err)

		modes, err = store.Modes(scope)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{constants.ModeRanked}, modes)
	})
}
