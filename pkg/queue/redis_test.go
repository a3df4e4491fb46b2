// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/codeduel/matchmaking-engine/pkg/common"
	"github.com/codeduel/matchmaking-engine/pkg/matchmaking"
)

// Redis-backed tests need a reachable server and skip otherwise.
func setupRedisClient(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: common.GetEnv("REDIS_ADDR", "localhost:6379"),
		DB:   15, // scratch DB for tests
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis server not available: %v", err)
	}

	t.Cleanup(func() {
		rdb.Close()
	})

	return rdb
}

func TestRedisStoreConformance(t *testing.T) {
	rdb := setupRedisClient(t)

	runStoreConformance(t, func(t *testing.T) matchmaking.QueueStore {
		// a unique prefix per subtest keeps stores isolated
		prefix := fmt.Sprintf("mmtest:%s:", common.GenerateUUID())
		t.Cleanup(func() {
			ctx := context.Background()
			iter := rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
			for iter.Next(ctx) {
				rdb.Del(ctx, iter.Val())
			}
		})
		return NewRedisStore(rdb, prefix, false)
	})
}

func TestRedisStoreMultiModeAllowed(t *testing.T) {
	rdb := setupRedisClient(t)
	prefix := fmt.Sprintf("mmtest:%s:", common.GenerateUUID())
	store := NewRedisStore(rdb, prefix, true)

	runMultiModeSmoke(t, store)
}
