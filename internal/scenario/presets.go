package scenario

import (
	"fmt"

	"github.com/stitts-dev/candidates-sim/internal/allocation"
	"github.com/stitts-dev/candidates-sim/internal/tournament"
)

// Preset names.
const (
	PresetCurrent    = "current"
	PresetPureRating = "pure_rating"
	PresetSkip75     = "current_skip_75"
	PresetMoreRating = "more_rating"
)

// currentSlots is the present cycle: circuit winner, Grand Swiss top two,
// World Cup top three, circuit runners-up with spillover, then rating.
func currentSlots(skip float64) []SlotDefinition {
	return []SlotDefinition{
		{TournamentType: tournament.TypeCircuit, MaxSpots: 1, Strategy: allocation.StrictTopN(), QualifiedSkipProb: skip},
		{TournamentType: tournament.TypeSwiss, MaxSpots: 2, Strategy: allocation.StrictTopN(), QualifiedSkipProb: skip},
		{TournamentType: tournament.TypeKnockout, MaxSpots: 3, Strategy: allocation.StrictTopN(), QualifiedSkipProb: skip},
		{TournamentType: tournament.TypeCircuit, MaxSpots: 2, Strategy: allocation.Circuit(1, 2), QualifiedSkipProb: skip},
		{TournamentType: tournament.TypeRating, MaxSpots: 8, Strategy: allocation.Rating(1)},
	}
}

var presets = map[string]func() Definition{
	PresetCurrent: func() Definition {
		return Definition{
			Name:             PresetCurrent,
			Description:      "Current system: circuit, Grand Swiss, World Cup, circuit spillover, rating",
			TargetCandidates: DefaultTargetCandidates,
			Slots:            currentSlots(0),
		}
	},
	PresetPureRating: func() Definition {
		return Definition{
			Name:             PresetPureRating,
			Description:      "All eight spots by rating",
			TargetCandidates: DefaultTargetCandidates,
			Slots: []SlotDefinition{
				{TournamentType: tournament.TypeRating, MaxSpots: 8, Strategy: allocation.Rating(8)},
			},
		}
	},
	PresetSkip75: func() Definition {
		return Definition{
			Name:             PresetSkip75,
			Description:      "Current system where qualified players skip later events 75% of the time",
			TargetCandidates: DefaultTargetCandidates,
			Slots:            currentSlots(0.75),
		}
	},
	PresetMoreRating: func() Definition {
		return Definition{
			Name:             PresetMoreRating,
			Description:      "World Cup reduced to one spot, circuit base two with spillover to three",
			TargetCandidates: DefaultTargetCandidates,
			Slots: []SlotDefinition{
				{TournamentType: tournament.TypeSwiss, MaxSpots: 2, Strategy: allocation.StrictTopN()},
				{TournamentType: tournament.TypeKnockout, MaxSpots: 1, Strategy: allocation.StrictTopN()},
				{TournamentType: tournament.TypeCircuit, MaxSpots: 3, Strategy: allocation.Circuit(2, 3)},
				{TournamentType: tournament.TypeRating, MaxSpots: 8, Strategy: allocation.Rating(1)},
			},
		}
	},
}

// Preset returns a fresh copy of a built-in scenario.
func Preset(name string) (Definition, error) {
	build, ok := presets[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: preset %q", ErrNotFound, name)
	}
	return build(), nil
}

// Presets returns every built-in scenario keyed by name.
func Presets() map[string]Definition {
	out := make(map[string]Definition, len(presets))
	for name, build := range presets {
		out[name] = build()
	}
	return out
}
