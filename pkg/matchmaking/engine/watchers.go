// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package engine

import (
	"sync"

	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
)

// watcherRegistry delivers terminal search outcomes to the channel each
// caller received from Enqueue. One watcher per player; re-enqueueing
// replaces the previous watcher, closing its channel.
type watcherRegistry struct {
	mu    sync.Mutex
	chans map[string]chan matchmaking.Outcome
}

func newWatcherRegistry() *watcherRegistry {
	return &watcherRegistry{chans: make(map[string]chan matchmaking.Outcome)}
}

func (r *watcherRegistry) register(userID string) <-chan matchmaking.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.chans[userID]; ok {
		close(old)
	}

	// buffered so outcome delivery never blocks a tick on a slow consumer
	ch := make(chan matchmaking.Outcome, 1)
	r.chans[userID] = ch
	return ch
}

func (r *watcherRegistry) notify(userID string, outcome matchmaking.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.chans[userID]
	if !ok {
		return
	}
	delete(r.chans, userID)

	select {
	case ch <- outcome:
	default:
	}
	close(ch)
}
