// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package queue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/codeduel/matchmaking-engine/pkg/envelope"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
)

// Key layout, under a configurable prefix:
//
//	{p}entry:{mode}:{userID}  hash: rating, queuedAt (unix nano), claim
//	{p}queue:{mode}           sorted set of userIDs scored by queuedAt
//	{p}player:{userID}        set of modes the player currently waits in
//	{p}modes                  set of modes ever enqueued into
//
// Claim operations run as Lua scripts so the compare-and-set on the claim
// field is atomic across engine instances.

var enqueueScript = redis.NewScript(`
local existing = redis.call('SMEMBERS', KEYS[3])
for _, m in ipairs(existing) do
	if m ~= ARGV[4] and ARGV[5] == '0' then
		return -1
	end
end
if redis.call('HGET', KEYS[1], 'claim') then
	return -1
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'rating', ARGV[1], 'queuedAt', ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[6])
redis.call('SADD', KEYS[3], ARGV[4])
redis.call('SADD', KEYS[4], ARGV[4])
return 1
`)

var dequeueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	if redis.call('HGET', KEYS[1], 'claim') then
		return 0
	end
	redis.call('DEL', KEYS[1])
	redis.call('ZREM', KEYS[2], ARGV[1])
	redis.call('SREM', KEYS[3], ARGV[2])
	return 1
end
redis.call('SREM', KEYS[3], ARGV[2])
return 0
`)

var claimScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
return redis.call('HSETNX', KEYS[1], 'claim', ARGV[1])
`)

var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'claim') == ARGV[1] then
	redis.call('HDEL', KEYS[1], 'claim')
	return 1
end
return 0
`)

var removeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'claim') == ARGV[1] then
	redis.call('DEL', KEYS[1])
	redis.call('ZREM', KEYS[2], ARGV[2])
	redis.call('SREM', KEYS[3], ARGV[3])
	return 1
end
return 0
`)

// RedisStore is a QueueStore shared between engine instances. The claim
// protocol makes overlapping ticks from different instances safe; whoever
// sets the claim field first owns the entry.
type RedisStore struct {
	rdb            *redis.Client
	prefix         string
	allowMultiMode bool
}

var _ matchmaking.QueueStore = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, prefix string, allowMultiMode bool) *RedisStore {
	if prefix == "" {
		prefix = "mm:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, allowMultiMode: allowMultiMode}
}

func (s *RedisStore) entryKey(mode, userID string) string {
	return s.prefix + "entry:" + mode + ":" + userID
}

func (s *RedisStore) queueKey(mode string) string {
	return s.prefix + "queue:" + mode
}

func (s *RedisStore) playerKey(userID string) string {
	return s.prefix + "player:" + userID
}

func (s *RedisStore) modesKey() string {
	return s.prefix + "modes"
}

func (s *RedisStore) Enqueue(scope *envelope.Scope, entry matchmaking.QueueEntry) (matchmaking.QueueEntry, error) {
	if entry.QueuedAt.IsZero() {
		entry.QueuedAt = time.Now()
	}

	allowMulti := "0"
	if s.allowMultiMode {
		allowMulti = "1"
	}

	keys := []string{
		s.entryKey(entry.Mode, entry.UserID),
		s.queueKey(entry.Mode),
		s.playerKey(entry.UserID),
		s.modesKey(),
	}
	args := []interface{}{
		entry.Rating,
		entry.QueuedAt.UnixNano(),
		float64(entry.QueuedAt.UnixNano()),
		entry.Mode,
		allowMulti,
		entry.UserID,
	}

	res, err := enqueueScript.Run(scope.Ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return matchmaking.QueueEntry{}, fmt.Errorf("enqueue %s/%s: %w", entry.Mode, entry.UserID, err)
	}
	if res == -1 {
		return matchmaking.QueueEntry{}, matchmaking.ErrAlreadyQueued
	}

	return entry, nil
}

func (s *RedisStore) Dequeue(scope *envelope.Scope, userID string) (bool, error) {
	modes, err := s.rdb.SMembers(scope.Ctx, s.playerKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("dequeue %s: %w", userID, err)
	}

	removed := false
	for _, mode := range modes {
		keys := []string{s.entryKey(mode, userID), s.queueKey(mode), s.playerKey(userID)}
		res, err := dequeueScript.Run(scope.Ctx, s.rdb, keys, userID, mode).Int()
		if err != nil {
			return removed, fmt.Errorf("dequeue %s/%s: %w", mode, userID, err)
		}
		if res == 1 {
			removed = true
		}
	}

	return removed, nil
}

func (s *RedisStore) Snapshot(scope *envelope.Scope, mode string) ([]matchmaking.QueueEntry, error) {
	userIDs, err := s.rdb.ZRange(scope.Ctx, s.queueKey(mode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", mode, err)
	}

	var out []matchmaking.QueueEntry
	for _, userID := range userIDs {
		fields, err := s.rdb.HGetAll(scope.Ctx, s.entryKey(mode, userID)).Result()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s/%s: %w", mode, userID, err)
		}
		if len(fields) == 0 {
			// entry removed between ZRange and HGetAll; heal the index
			s.rdb.ZRem(scope.Ctx, s.queueKey(mode), userID)
			continue
		}

		rating, _ := strconv.Atoi(fields["rating"])
		queuedAtNano, _ := strconv.ParseInt(fields["queuedAt"], 10, 64)

		out = append(out, matchmaking.QueueEntry{
			UserID:   userID,
			Rating:   rating,
			Mode:     mode,
			QueuedAt: time.Unix(0, queuedAtNano),
		})
	}

	return out, nil
}

func (s *RedisStore) Modes(scope *envelope.Scope) ([]string, error) {
	modes, err := s.rdb.SMembers(scope.Ctx, s.modesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list modes: %w", err)
	}

	var active []string
	for _, mode := range modes {
		n, err := s.rdb.ZCard(scope.Ctx, s.queueKey(mode)).Result()
		if err != nil {
			return nil, fmt.Errorf("list modes: %w", err)
		}
		if n > 0 {
			active = append(active, mode)
		}
	}

	return active, nil
}

func (s *RedisStore) TryClaim(scope *envelope.Scope, mode, userID string) (*matchmaking.ClaimToken, error) {
	claimID := ulid.Make().String()

	res, err := claimScript.Run(scope.Ctx, s.rdb, []string{s.entryKey(mode, userID)}, claimID).Int()
	if err != nil {
		return nil, fmt.Errorf("claim %s/%s: %w", mode, userID, err)
	}
	if res == 0 {
		return nil, nil
	}

	return &matchmaking.ClaimToken{UserID: userID, Mode: mode, ID: claimID}, nil
}

func (s *RedisStore) Release(scope *envelope.Scope, token *matchmaking.ClaimToken) error {
	keys := []string{s.entryKey(token.Mode, token.UserID)}
	if err := releaseScript.Run(scope.Ctx, s.rdb, keys, token.ID).Err(); err != nil {
		return fmt.Errorf("release %s/%s: %w", token.Mode, token.UserID, err)
	}
	return nil
}

func (s *RedisStore) Remove(scope *envelope.Scope, token *matchmaking.ClaimToken) error {
	keys := []string{
		s.entryKey(token.Mode, token.UserID),
		s.queueKey(token.Mode),
		s.playerKey(token.UserID),
	}
	if err := removeScript.Run(scope.Ctx, s.rdb, keys, token.ID, token.UserID, token.Mode).Err(); err != nil {
		return fmt.Errorf("remove %s/%s: %w", token.Mode, token.UserID, err)
	}
	return nil
}
