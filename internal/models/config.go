package models

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a QualificationConfig cannot be run.
var ErrInvalidConfig = errors.New("invalid qualification config")

// ParticipationMode controls how a player takes part in a qualification cycle.
type ParticipationMode string

const (
	// ModeFull plays every tournament and is eligible on every path.
	ModeFull ParticipationMode = "full"
	// ModeRatingOnly skips tournaments and can only qualify by rating.
	ModeRatingOnly ParticipationMode = "rating_only"
	// ModeExcluded neither plays nor qualifies.
	ModeExcluded ParticipationMode = "excluded"
	// ModePlaysNotEligible plays (and moves ratings) but can never take a spot,
	// e.g. a reigning champion.
	ModePlaysNotEligible ParticipationMode = "plays_not_eligible"
)

// Valid reports whether m is a known mode. The empty mode counts as full.
func (m ParticipationMode) Valid() bool {
	switch m {
	case "", ModeFull, ModeRatingOnly, ModeExcluded, ModePlaysNotEligible:
		return true
	}
	return false
}

// PlayerConfig overrides the default (full) participation of one player.
type PlayerConfig struct {
	Mode               ParticipationMode `json:"mode" yaml:"mode"`
	BlockedTournaments []string          `json:"blocked_tournaments,omitempty" yaml:"blocked_tournaments,omitempty"`
}

// Blocks reports whether the player never enters tournaments of the given type.
func (c PlayerConfig) Blocks(tournamentType string) bool {
	for _, t := range c.BlockedTournaments {
		if t == tournamentType {
			return true
		}
	}
	return false
}

// Allocator fills a slot's spots from ordered standings. Implementations
// must not return players whose id is in alreadyQualified.
type Allocator interface {
	Allocate(standings []*Player, maxSpots int, alreadyQualified map[int]struct{}) []*Player
}

// TournamentSlot is one qualification channel. Slots are evaluated in list
// order and that order decides priority.
type TournamentSlot struct {
	TournamentType    string         `json:"tournament_type"`
	MaxSpots          int            `json:"max_spots"`
	Strategy          Allocator      `json:"-"`
	QualifiedSkipProb float64        `json:"qualified_skip_prob"`
	Params            map[string]any `json:"params,omitempty"`
}

// QualificationConfig describes one full qualification cycle.
type QualificationConfig struct {
	TargetCandidates int                  `json:"target_candidates"`
	Slots            []TournamentSlot     `json:"slots"`
	PlayerConfigs    map[int]PlayerConfig `json:"player_configs,omitempty"`

	// StandingsDepth is the topN requested from tournament simulators.
	// Zero means full standings.
	StandingsDepth int `json:"standings_depth"`

	// KeepQualifiedInStandings leaves already-qualified players in the
	// standings handed to allocation strategies so that spot loss and
	// duplicate spillover can see them. Mode-ineligible players are always
	// removed.
	KeepQualifiedInStandings bool `json:"keep_qualified_in_standings"`
}

// DefaultStandingsDepth is the standings depth used by the presets.
const DefaultStandingsDepth = 20

// PlayerConfigFor returns the configuration of a player, defaulting to full
// participation.
func (c *QualificationConfig) PlayerConfigFor(id int) PlayerConfig {
	if cfg, ok := c.PlayerConfigs[id]; ok {
		if cfg.Mode == "" {
			cfg.Mode = ModeFull
		}
		return cfg
	}
	return PlayerConfig{Mode: ModeFull}
}

// Validate checks the structural parts of the config. Tournament types are
// checked separately against a registry.
func (c *QualificationConfig) Validate() error {
	if c.TargetCandidates <= 0 {
		return fmt.Errorf("%w: target_candidates must be positive, got %d", ErrInvalidConfig, c.TargetCandidates)
	}
	if c.StandingsDepth < 0 {
		return fmt.Errorf("%w: standings_depth must not be negative", ErrInvalidConfig)
	}
	for i, slot := range c.Slots {
		if slot.TournamentType == "" {
			return fmt.Errorf("%w: slot %d has no tournament type", ErrInvalidConfig, i)
		}
		if slot.MaxSpots < 0 {
			return fmt.Errorf("%w: slot %d (%s) has negative max_spots", ErrInvalidConfig, i, slot.TournamentType)
		}
		if slot.QualifiedSkipProb < 0 || slot.QualifiedSkipProb > 1 {
			return fmt.Errorf("%w: slot %d (%s) qualified_skip_prob %.3f outside [0,1]",
				ErrInvalidConfig, i, slot.TournamentType, slot.QualifiedSkipProb)
		}
		if slot.Strategy == nil {
			return fmt.Errorf("%w: slot %d (%s) has no allocation strategy", ErrInvalidConfig, i, slot.TournamentType)
		}
	}
	for id, pc := range c.PlayerConfigs {
		if !pc.Mode.Valid() {
			return fmt.Errorf("%w: player %d has unknown mode %q", ErrInvalidConfig, id, pc.Mode)
		}
	}
	return nil
}
