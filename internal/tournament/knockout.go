package tournament

import (
	"fmt"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
)

// KnockoutOptions configures a single-elimination event.
type KnockoutOptions struct {
	FieldSize     int     `mapstructure:"field_size"`
	GamesPerMatch int     `mapstructure:"games_per_match"`
	KFactor       float64 `mapstructure:"k_factor"`
	WeightPivot   float64 `mapstructure:"weight_pivot"`
	WeightScale   float64 `mapstructure:"weight_scale"`
}

// DefaultKnockoutOptions mirrors a 128-player World Cup with two-game
// matches. Live ratings are left untouched.
func DefaultKnockoutOptions() KnockoutOptions {
	return KnockoutOptions{
		FieldSize:     128,
		GamesPerMatch: 2,
		KFactor:       0,
		WeightPivot:   2600,
		WeightScale:   200,
	}
}

func (o KnockoutOptions) validate() error {
	if o.FieldSize < 0 {
		return fmt.Errorf("%w: field_size must not be negative", ErrInvalidParams)
	}
	if o.GamesPerMatch < 1 {
		return fmt.Errorf("%w: games_per_match must be at least 1", ErrInvalidParams)
	}
	if o.KFactor < 0 {
		return fmt.Errorf("%w: k_factor must not be negative", ErrInvalidParams)
	}
	return nil
}

// Knockout simulates a seeded single-elimination bracket.
type Knockout struct {
	participants []*models.Player
	opts         KnockoutOptions
	env          Env
}

// NewKnockout builds a knockout over participants.
func NewKnockout(participants []*models.Player, opts KnockoutOptions, env Env) *Knockout {
	return &Knockout{participants: participants, opts: opts, env: env}
}

// NewKnockoutFromParams is the registry factory for TypeKnockout.
func NewKnockoutFromParams(participants []*models.Player, params map[string]any, env Env) (Tournament, error) {
	opts := DefaultKnockoutOptions()
	if err := decodeParams(params, &opts); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return NewKnockout(participants, opts, env), nil
}

// Standings runs the bracket and returns the champion first followed by the
// losers of each round, latest round first. Players knocked out in the same
// round are listed in reverse elimination order; no placement matches are
// played between them.
func (k *Knockout) Standings(topN int) []*models.Player {
	if len(k.participants) < 2 {
		return []*models.Player{}
	}
	model := k.env.Model.OrDefault()

	field := sampleField(k.env.Rng, k.participants, k.opts.FieldSize, k.opts.WeightPivot, k.opts.WeightScale)
	models.SortByElo(field)

	current := field
	eliminated := make([]*models.Player, 0, len(field))
	for len(current) > 1 {
		n := len(current)
		next := make([]*models.Player, 0, (n+1)/2)
		for i := 0; i < n/2; i++ {
			a, b := current[i], current[n-1-i]
			winner := k.playMatch(model, a, b)
			loser := b
			if winner == b {
				loser = a
			}
			eliminated = append(eliminated, loser)
			next = append(next, winner)
		}
		// odd round: the middle seed has no opponent and advances
		if n%2 == 1 {
			next = append(next, current[n/2])
		}
		current = next
	}
	eliminated = append(eliminated, current[0])

	standings := make([]*models.Player, len(eliminated))
	for i, p := range eliminated {
		standings[len(eliminated)-1-i] = p
	}
	return truncate(standings, topN)
}

func (k *Knockout) playMatch(model game.Model, a, b *models.Player) *models.Player {
	var scoreA, scoreB float64
	for g := 0; g < k.opts.GamesPerMatch; g++ {
		result := model.Play(k.env.Rng, a.Elo, b.Elo)
		scoreA += result
		scoreB += 1 - result
		if k.opts.KFactor > 0 {
			a.Elo, b.Elo = game.UpdateRatings(a.Elo, b.Elo, result, k.opts.KFactor)
		}
	}

	switch {
	case scoreA > scoreB:
		return a
	case scoreB > scoreA:
		return b
	}
	// tiebreak slightly favours the higher rated player
	if k.env.Rng.Float64() < game.ExpectedScore(a.Elo, b.Elo) {
		return a
	}
	return b
}
