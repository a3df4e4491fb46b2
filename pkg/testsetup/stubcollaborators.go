// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"errors"
	"sync"

	"github.com/codeduel/matchmaking-engine/pkg/common"
	"github.com/codeduel/matchmaking-engine/pkg/envelope"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
)

// CreatedMatch records one CreateMatch call on the stub.
type CreatedMatch struct {
	MatchID   string
	Player1ID string
	Player2ID string
	Mode      string
	Puzzle    matchmaking.Puzzle
}

// StubMatchCreator records every created match and can be scripted to fail.
type StubMatchCreator struct {
	mu sync.Mutex

	// Err makes every call fail. FailuresBeforeSuccess makes only the first
	// N calls fail, then succeeds.
	Err                   error
	FailuresBeforeSuccess int

	Calls []CreatedMatch
}

func (s *StubMatchCreator) CreateMatch(scope *envelope.Scope, player1ID, player2ID, mode string, puzzle matchmaking.Puzzle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	if s.FailuresBeforeSuccess > 0 {
		s.FailuresBeforeSuccess--
		return "", errors.New("scripted match creation failure")
	}

	matchID := common.GenerateUUID()
	s.Calls = append(s.Calls, CreatedMatch{
		MatchID:   matchID,
		Player1ID: player1ID,
		Player2ID: player2ID,
		Mode:      mode,
		Puzzle:    puzzle,
	})

	return matchID, nil
}

// Created returns a copy of all recorded calls.
func (s *StubMatchCreator) Created() []CreatedMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CreatedMatch, len(s.Calls))
	copy(out, s.Calls)
	return out
}

// ParticipationCounts returns how many committed matches each user appears in.
func (s *StubMatchCreator) ParticipationCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, call := range s.Calls {
		counts[call.Player1ID]++
		counts[call.Player2ID]++
	}
	return counts
}

// StubPuzzleGenerator returns a fixed puzzle, or fails when Err is set.
type StubPuzzleGenerator struct {
	mu     sync.Mutex
	Err    error
	Puzzle matchmaking.Puzzle
	Calls  int
}

func (s *StubPuzzleGenerator) GeneratePuzzle(scope *envelope.Scope, mode string, ratingAverage int) (matchmaking.Puzzle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return matchmaking.Puzzle{}, s.Err
	}
	return s.Puzzle, nil
}

// Notification records one NotifyPlayer call on the stub.
type Notification struct {
	UserID   string
	MatchID  string
	Opponent matchmaking.OpponentInfo
}

// StubNotifier records every push notification.
type StubNotifier struct {
	mu            sync.Mutex
	Notifications []Notification
}

func (s *StubNotifier) NotifyPlayer(scope *envelope.Scope, userID string, matchID string, opponent matchmaking.OpponentInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notifications = append(s.Notifications, Notification{UserID: userID, MatchID: matchID, Opponent: opponent})
}

// Notified returns a copy of all recorded notifications.
func (s *StubNotifier) Notified() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.Notifications))
	copy(out, s.Notifications)
	return out
}

// StubRatingProvider serves ratings from a fixed map.
type StubRatingProvider struct {
	Ratings map[string]int
	Err     error
}

func (s *StubRatingProvider) GetUserRating(scope *envelope.Scope, userID string) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	if rating, ok := s.Ratings[userID]; ok {
		return rating, nil
	}
	return 0, errors.New("unknown user " + userID)
}
