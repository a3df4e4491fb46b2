// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeduel/matchmaking-engine/pkg/constants"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
	"github.com/codeduel/matchmaking-engine/pkg/testsetup"
)

func TestMemoryStoreConformance(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) matchmaking.QueueStore {
		return NewMemoryStore(false)
	})
}

func TestMemoryStoreMultiModeAllowed(t *testing.T) {
	runMultiModeSmoke(t, NewMemoryStore(true))
}

func TestMemoryStoreConcurrentChurn(t *testing.T) {
	scope := testsetup.NewTestScope()
	store := NewMemoryStore(false)

	const players = 32
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("player-%02d", i)
			for round := 0; round < 50; round++ {
				_, err := store.Enqueue(scope, matchmaking.QueueEntry{
					UserID:   userID,
					Rating:   1000 + i,
					Mode:     constants.ModeRanked,
					QueuedAt: time.Now(),
				})
				if err != nil {
					continue
				}
				if token, _ := store.TryClaim(scope, constants.ModeRanked, userID); token != nil {
					_ = store.Release(scope, token)
				}
				_, _ = store.Dequeue(scope, userID)
			}
		}(i)
	}
	wg.Wait()

	snapshot, err := store.Snapshot(scope, constants.ModeRanked)
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}
