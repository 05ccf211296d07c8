package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// MatchConfig tunes room behavior. Loaded once per process from an optional
// JSON file; the Nakama adapter applies env overrides on top.
type MatchConfig struct {
	// MinPlayersToStart is the smallest seat count the owner may start with.
	MinPlayersToStart int `json:"min_players_to_start"`
	// SetupPath points at a board setup YAML; empty uses the embedded board.
	SetupPath string `json:"setup_path"`
	// FirstRoundRestrictions are planning restriction ids applied to the
	// opening round.
	FirstRoundRestrictions []string `json:"first_round_restrictions"`
}

var (
	cfg      *MatchConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadMatchConfig loads the match configuration from the given path.
func LoadMatchConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read match config: %w", err)
			return
		}

		var c MatchConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal match config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetMatchConfig returns the loaded configuration or safe defaults.
func GetMatchConfig() MatchConfig {
	if cfg == nil {
		return MatchConfig{MinPlayersToStart: 2}
	}
	c := *cfg
	if c.MinPlayersToStart <= 0 {
		c.MinPlayersToStart = 2
	}
	return c
}
