package tournament

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
)

// Tournament type tags understood by the default registry. TypeRating is the
// rating-list pseudo-tournament and has no simulator.
const (
	TypeKnockout = "world_cup"
	TypeSwiss    = "grand_swiss"
	TypeCircuit  = "fide_circuit"
	TypeRating   = "rating"
)

var (
	// ErrUnknownType is returned for a tournament type with no registered factory.
	ErrUnknownType = errors.New("unknown tournament type")
	// ErrInvalidParams is returned when slot params cannot configure a tournament.
	ErrInvalidParams = errors.New("invalid tournament params")
)

// Tournament produces ordered standings (best first) for its field.
// Simulators must return empty standings for fewer than two participants.
type Tournament interface {
	Standings(topN int) []*models.Player
}

// Env carries the per-season collaborators every simulator needs.
type Env struct {
	Rng   *rand.Rand
	Model game.Model
}

// Factory builds a tournament over participants. It is also called with nil
// participants to validate params before any season runs.
type Factory func(participants []*models.Player, params map[string]any, env Env) (Tournament, error)

// Registry maps tournament type tags to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the knockout, swiss and circuit
// simulators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeKnockout, NewKnockoutFromParams)
	r.Register(TypeSwiss, NewSwissFromParams)
	r.Register(TypeCircuit, NewCircuitFromParams)
	return r
}

// Register adds or replaces the factory for a type tag.
func (r *Registry) Register(tournamentType string, factory Factory) {
	r.factories[tournamentType] = factory
}

// Has reports whether a simulator is registered for the type tag.
func (r *Registry) Has(tournamentType string) bool {
	_, ok := r.factories[tournamentType]
	return ok
}

// Types returns the registered type tags in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds the tournament registered for tournamentType.
func (r *Registry) New(tournamentType string, participants []*models.Player, params map[string]any, env Env) (Tournament, error) {
	factory, ok := r.factories[tournamentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tournamentType)
	}
	return factory(participants, params, env)
}

// Validate checks that every slot refers to a known type and that its params
// decode. It runs before any season so configuration errors surface early.
func (r *Registry) Validate(cfg *models.QualificationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for i, slot := range cfg.Slots {
		if slot.TournamentType == TypeRating {
			continue
		}
		if !r.Has(slot.TournamentType) {
			return fmt.Errorf("slot %d: %w: %q", i, ErrUnknownType, slot.TournamentType)
		}
		if _, err := r.New(slot.TournamentType, nil, slot.Params, Env{}); err != nil {
			return fmt.Errorf("slot %d (%s): %w", i, slot.TournamentType, err)
		}
	}
	return nil
}

func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// sampleField draws up to size players, favouring stronger ones.
// A non-positive size takes everyone.
func sampleField(rng *rand.Rand, participants []*models.Player, size int, pivot, scale float64) []*models.Player {
	if size <= 0 || size > len(participants) {
		size = len(participants)
	}
	weight := game.StrengthWeight(pivot, scale)
	return game.WeightedSample(rng, participants, size, func(p *models.Player) float64 {
		return weight(p.Elo)
	})
}

func truncate(standings []*models.Player, topN int) []*models.Player {
	if topN > 0 && len(standings) > topN {
		return standings[:topN]
	}
	return standings
}
