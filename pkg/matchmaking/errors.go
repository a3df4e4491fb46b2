// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package matchmaking

import "errors"

var (
	// ErrAlreadyQueued is returned by Enqueue when the player already holds an
	// active entry in a different mode and multi-mode queuing is disallowed.
	ErrAlreadyQueued = errors.New("player already queued in another mode")

	// ErrEngineStopped is returned when Enqueue is called after Stop.
	ErrEngineStopped = errors.New("matchmaking engine is stopped")
)
