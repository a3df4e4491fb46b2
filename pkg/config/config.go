// Copyright (c) 2025 CodeDuel Inc. All Rights Reserved.
// This is licensed software from CodeDuel Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env"
	"github.com/mitchellh/copystructure"
)

// Config holds the tunables of the matchmaking engine. All fields are
// overridable from the environment.
type Config struct {
	TickIntervalSecond       int  `env:"TICK_INTERVAL_SECOND"        envDefault:"2"   envDocs:"driver tick cadence in seconds"`
	CloseMaxDistance         int  `env:"CLOSE_MAX_DISTANCE"          envDefault:"50"  envDocs:"allowed rating distance while waiting under a minute"`
	WideMaxDistance          int  `env:"WIDE_MAX_DISTANCE"           envDefault:"200" envDocs:"allowed rating distance between one and two minutes of wait"`
	DesperateMaxDistance     int  `env:"DESPERATE_MAX_DISTANCE"      envDefault:"300" envDocs:"allowed rating distance past two minutes of wait"`
	DesperationTimeoutSecond int  `env:"DESPERATION_TIMEOUT_SECOND"  envDefault:"130" envDocs:"wait after which any opponent in mode is acceptable"`
	MaxWaitSecond            int  `env:"MAX_WAIT_SECOND"             envDefault:"180" envDocs:"wait after which a queued entry is evicted as timed out"`
	CommitFailureLimit       int  `env:"COMMIT_FAILURE_LIMIT"        envDefault:"3"   envDocs:"consecutive match-creation failures for one pair before both sides are told matchmaking is unavailable"`
	AllowMultiModeQueue      bool `env:"ALLOW_MULTI_MODE_QUEUE"      envDefault:"false" envDocs:"allow one player to hold queue entries in two modes at once"`
}

// EscalationOverride carries per-mode deviations from the base escalation
// thresholds. Zero values mean "use the base value".
type EscalationOverride struct {
	CloseMaxDistance         int
	WideMaxDistance          int
	DesperateMaxDistance     int
	DesperationTimeoutSecond int
}

func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config from env: %w", err)
	}
	return cfg, nil
}

// Copy returns a deep copy so per-mode overrides never mutate the shared base.
func (c Config) Copy() Config {
	copied, err := copystructure.Copy(c)
	if err != nil {
		return c
	}
	return copied.(Config)
}

// WithOverride applies a per-mode escalation override on top of a copy of
// the base config.
func (c Config) WithOverride(o EscalationOverride) Config {
	out := c.Copy()
	if o.CloseMaxDistance > 0 {
		out.CloseMaxDistance = o.CloseMaxDistance
	}
	if o.WideMaxDistance > 0 {
		out.WideMaxDistance = o.WideMaxDistance
	}
	if o.DesperateMaxDistance > 0 {
		out.DesperateMaxDistance = o.DesperateMaxDistance
	}
	if o.DesperationTimeoutSecond > 0 {
		out.DesperationTimeoutSecond = o.DesperationTimeoutSecond
	}
	return out
}
