package allocation

import (
	"errors"
	"fmt"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// Kind tags an allocation policy.
type Kind string

const (
	KindStrictTopN Kind = "strict_top_n"
	KindSpillover  Kind = "spillover"
	KindCircuit    Kind = "circuit"
	KindRating     Kind = "rating"
)

// circuitLookahead is how far past capSpots the circuit rule scans for
// already-qualified players.
const circuitLookahead = 5

// ErrUnknownKind is returned when a strategy definition names no known policy.
var ErrUnknownKind = errors.New("unknown allocation strategy")

// Strategy is one of the closed set of allocation policies. Only the fields
// relevant to its Kind are used.
type Strategy struct {
	Kind            Kind `json:"type" yaml:"type" mapstructure:"type"`
	BaseSpots       int  `json:"base_spots,omitempty" yaml:"base_spots,omitempty" mapstructure:"base_spots"`
	CapSpots        int  `json:"cap_spots,omitempty" yaml:"cap_spots,omitempty" mapstructure:"cap_spots"`
	GuaranteedSpots int  `json:"guaranteed_spots,omitempty" yaml:"guaranteed_spots,omitempty" mapstructure:"guaranteed_spots"`
}

var _ models.Allocator = Strategy{}

// StrictTopN only considers the first maxSpots finishers. Spots held by
// already-qualified players are lost.
func StrictTopN() Strategy { return Strategy{Kind: KindStrictTopN} }

// Spillover walks the whole standings until maxSpots new qualifiers are found.
func Spillover() Strategy { return Strategy{Kind: KindSpillover} }

// Circuit grants base spots plus one per already-qualified player found near
// the top of the standings, up to capSpots.
func Circuit(baseSpots, capSpots int) Strategy {
	return Strategy{Kind: KindCircuit, BaseSpots: baseSpots, CapSpots: capSpots}
}

// Rating fills max(guaranteedSpots, maxSpots) spots in live-rating order.
func Rating(guaranteedSpots int) Strategy {
	return Strategy{Kind: KindRating, GuaranteedSpots: guaranteedSpots}
}

// Validate checks the parameters of the strategy.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindStrictTopN, KindSpillover:
		return nil
	case KindCircuit:
		if s.BaseSpots < 0 || s.CapSpots < 0 {
			return fmt.Errorf("circuit strategy: spots must not be negative (base=%d cap=%d)", s.BaseSpots, s.CapSpots)
		}
		if s.BaseSpots > s.CapSpots {
			return fmt.Errorf("circuit strategy: base_spots %d exceeds cap_spots %d", s.BaseSpots, s.CapSpots)
		}
		return nil
	case KindRating:
		if s.GuaranteedSpots < 0 {
			return fmt.Errorf("rating strategy: guaranteed_spots must not be negative")
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
}

// Allocate returns the players that take spots from standings.
func (s Strategy) Allocate(standings []*models.Player, maxSpots int, alreadyQualified map[int]struct{}) []*models.Player {
	switch s.Kind {
	case KindStrictTopN:
		return strictTopN(standings, maxSpots, alreadyQualified)
	case KindSpillover:
		return fill(standings, maxSpots, alreadyQualified)
	case KindCircuit:
		return s.circuit(standings, maxSpots, alreadyQualified)
	case KindRating:
		spots := maxSpots
		if s.GuaranteedSpots > spots {
			spots = s.GuaranteedSpots
		}
		return fill(standings, spots, alreadyQualified)
	}
	return nil
}

func (s Strategy) String() string {
	switch s.Kind {
	case KindCircuit:
		return fmt.Sprintf("%s(base=%d,cap=%d)", s.Kind, s.BaseSpots, s.CapSpots)
	case KindRating:
		return fmt.Sprintf("%s(guaranteed=%d)", s.Kind, s.GuaranteedSpots)
	}
	return string(s.Kind)
}

func strictTopN(standings []*models.Player, maxSpots int, qualified map[int]struct{}) []*models.Player {
	if maxSpots <= 0 {
		return nil
	}
	if len(standings) > maxSpots {
		standings = standings[:maxSpots]
	}
	out := make([]*models.Player, 0, len(standings))
	for _, p := range standings {
		if _, ok := qualified[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

func fill(standings []*models.Player, spots int, qualified map[int]struct{}) []*models.Player {
	if spots <= 0 {
		return nil
	}
	out := make([]*models.Player, 0, spots)
	for _, p := range standings {
		if len(out) >= spots {
			break
		}
		if _, ok := qualified[p.ID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s Strategy) circuit(standings []*models.Player, maxSpots int, qualified map[int]struct{}) []*models.Player {
	limit := maxSpots
	if s.CapSpots < limit {
		limit = s.CapSpots
	}
	if limit <= 0 {
		return nil
	}

	window := standings
	if scan := s.CapSpots + circuitLookahead; len(window) > scan {
		window = window[:scan]
	}
	duplicates := 0
	open := make([]*models.Player, 0, len(window))
	for _, p := range window {
		if _, ok := qualified[p.ID]; ok {
			duplicates++
			continue
		}
		open = append(open, p)
	}

	available := s.BaseSpots + duplicates
	if available > limit {
		available = limit
	}
	if available > len(open) {
		available = len(open)
	}
	return open[:available]
}
