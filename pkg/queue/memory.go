// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

// Package queue provides the holding area for waiting matchmaking entries.
// Two implementations exist: an in-process store for single-instance
// deployments and tests, and a Redis-backed store for shared deployments.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codeduel/matchmaking-engine/pkg/envelope"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
)

type memoryEntry struct {
	matchmaking.QueueEntry
	claimID string // empty when unclaimed
}

// MemoryStore is a mutex-guarded in-process QueueStore. Claim operations are
// compare-and-set against the entry's claim marker, so concurrent commit
// attempts for the same player resolve to exactly one winner.
type MemoryStore struct {
	allowMultiMode bool

	mu      sync.Mutex
	entries map[string]*memoryEntry // keyed mode + "/" + userID
	byUser  map[string][]string     // userID -> modes with an active entry
}

var _ matchmaking.QueueStore = (*MemoryStore)(nil)

func NewMemoryStore(allowMultiMode bool) *MemoryStore {
	return &MemoryStore{
		allowMultiMode: allowMultiMode,
		entries:        make(map[string]*memoryEntry),
		byUser:         make(map[string][]string),
	}
}

func entryKey(mode, userID string) string {
	return mode + "/" + userID
}

func (s *MemoryStore) Enqueue(scope *envelope.Scope, entry matchmaking.QueueEntry) (matchmaking.QueueEntry, error) {
	if entry.QueuedAt.IsZero() {
		entry.QueuedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowMultiMode {
		for _, mode := range s.byUser[entry.UserID] {
			if mode != entry.Mode {
				return matchmaking.QueueEntry{}, matchmaking.ErrAlreadyQueued
			}
		}
	}

	key := entryKey(entry.Mode, entry.UserID)
	if existing, exists := s.entries[key]; exists {
		if existing.claimID != "" {
			// a commit holds this entry; replacing it now could double-book
			return matchmaking.QueueEntry{}, matchmaking.ErrAlreadyQueued
		}
	} else {
		s.byUser[entry.UserID] = append(s.byUser[entry.UserID], entry.Mode)
	}

	// insert or replace; a replace resets queue position and drops any claim
	s.entries[key] = &memoryEntry{QueueEntry: entry}

	scope.Log.WithField("userID", entry.UserID).WithField("mode", entry.Mode).Debug("entry enqueued")

	return entry, nil
}

func (s *MemoryStore) Dequeue(scope *envelope.Scope, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	var kept []string
	for _, mode := range s.byUser[userID] {
		key := entryKey(mode, userID)
		entry, ok := s.entries[key]
		if !ok {
			continue
		}
		if entry.claimID != "" {
			// a commit claimed this entry first; the claim wins the race
			kept = append(kept, mode)
			continue
		}
		delete(s.entries, key)
		removed = true
	}

	if len(kept) == 0 {
		delete(s.byUser, userID)
	} else {
		s.byUser[userID] = kept
	}

	return removed, nil
}

func (s *MemoryStore) Snapshot(scope *envelope.Scope, mode string) ([]matchmaking.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []matchmaking.QueueEntry
	for _, entry := range s.entries {
		if entry.Mode == mode {
			out = append(out, entry.QueueEntry)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].QueuedAt.Equal(out[j].QueuedAt) {
			return out[i].QueuedAt.Before(out[j].QueuedAt)
		}
		return out[i].UserID < out[j].UserID
	})

	return out, nil
}

func (s *MemoryStore) Modes(scope *envelope.Scope) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, entry := range s.entries {
		seen[entry.Mode] = true
	}

	modes := make([]string, 0, len(seen))
	for mode := range seen {
		modes = append(modes, mode)
	}
	sort.Strings(modes)

	return modes, nil
}

func (s *MemoryStore) TryClaim(scope *envelope.Scope, mode, userID string) (*matchmaking.ClaimToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryKey(mode, userID)]
	if !ok || entry.claimID != "" {
		return nil, nil
	}

	entry.claimID = ulid.Make().String()

	return &matchmaking.ClaimToken{
		UserID: userID,
		Mode:   mode,
		ID:     entry.claimID,
	}, nil
}

func (s *MemoryStore) Release(scope *envelope.Scope, token *matchmaking.ClaimToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryKey(token.Mode, token.UserID)]
	if !ok || entry.claimID != token.ID {
		// stale token: the entry was re-enqueued or removed since the claim
		return nil
	}
	entry.claimID = ""

	return nil
}

func (s *MemoryStore) Remove(scope *envelope.Scope, token *matchmaking.ClaimToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey(token.Mode, token.UserID)
	entry, ok := s.entries[key]
	if !ok || entry.claimID != token.ID {
		return nil
	}

	delete(s.entries, key)

	var kept []string
	for _, mode := range s.byUser[token.UserID] {
		if mode != token.Mode {
			kept = append(kept, mode)
		}
	}
	if len(kept) == 0 {
		delete(s.byUser, token.UserID)
	} else {
		s.byUser[token.UserID] = kept
	}

	return nil
}
