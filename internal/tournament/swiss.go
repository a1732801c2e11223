package tournament

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
)

// ByeScore is awarded to the unpaired player of an odd score group.
const ByeScore = 0.5

// SwissOptions configures a Swiss event.
type SwissOptions struct {
	FieldSize   int     `mapstructure:"field_size"`
	Rounds      int     `mapstructure:"rounds"`
	KFactor     float64 `mapstructure:"k_factor"`
	WeightPivot float64 `mapstructure:"weight_pivot"`
	WeightScale float64 `mapstructure:"weight_scale"`
}

// DefaultSwissOptions mirrors an 11-round Grand Swiss with about 110 players.
func DefaultSwissOptions() SwissOptions {
	return SwissOptions{
		FieldSize:   110,
		Rounds:      11,
		KFactor:     10,
		WeightPivot: 2600,
		WeightScale: 200,
	}
}

func (o SwissOptions) validate() error {
	if o.FieldSize < 0 {
		return fmt.Errorf("%w: field_size must not be negative", ErrInvalidParams)
	}
	if o.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidParams)
	}
	if o.KFactor < 0 {
		return fmt.Errorf("%w: k_factor must not be negative", ErrInvalidParams)
	}
	return nil
}

// Swiss simulates a Swiss-system event with random pairing inside score groups.
type Swiss struct {
	participants []*models.Player
	opts         SwissOptions
	env          Env
}

// NewSwiss builds a Swiss event over participants.
func NewSwiss(participants []*models.Player, opts SwissOptions, env Env) *Swiss {
	return &Swiss{participants: participants, opts: opts, env: env}
}

// NewSwissFromParams is the registry factory for TypeSwiss.
func NewSwissFromParams(participants []*models.Player, params map[string]any, env Env) (Tournament, error) {
	opts := DefaultSwissOptions()
	if err := decodeParams(params, &opts); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return NewSwiss(participants, opts, env), nil
}

// Standings returns the final table ordered by score, then live rating.
func (s *Swiss) Standings(topN int) []*models.Player {
	if len(s.participants) < 2 {
		return []*models.Player{}
	}
	field := sampleField(s.env.Rng, s.participants, s.opts.FieldSize, s.opts.WeightPivot, s.opts.WeightScale)
	table := playSwiss(s.env, field, s.opts.Rounds, s.opts.KFactor)

	standings := make([]*models.Player, len(table))
	for i, row := range table {
		standings[i] = row.player
	}
	return truncate(standings, topN)
}

type swissRow struct {
	player *models.Player
	score  float64
}

// playSwiss runs the rounds and returns the full table, best first.
func playSwiss(env Env, field []*models.Player, rounds int, kFactor float64) []swissRow {
	model := env.Model.OrDefault()
	scores := make(map[int]float64, len(field))
	for _, p := range field {
		scores[p.ID] = 0
	}

	for r := 0; r < rounds; r++ {
		groups := make(map[float64][]*models.Player)
		for _, p := range field {
			groups[scores[p.ID]] = append(groups[scores[p.ID]], p)
		}
		// walk groups top score first so the draw order is reproducible
		keys := make([]float64, 0, len(groups))
		for score := range groups {
			keys = append(keys, score)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(keys)))

		next := make(map[int]float64, len(scores))
		for id, score := range scores {
			next[id] = score
		}

		for _, key := range keys {
			group := groups[key]
			env.Rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
			for i := 0; i < len(group); i += 2 {
				if i+1 >= len(group) {
					next[group[i].ID] += ByeScore
					continue
				}
				a, b := group[i], group[i+1]
				result := model.Play(env.Rng, a.Elo, b.Elo)
				next[a.ID] += result
				next[b.ID] += 1 - result
				if kFactor > 0 {
					a.Elo, b.Elo = game.UpdateRatings(a.Elo, b.Elo, result, kFactor)
				}
			}
		}
		scores = next
	}

	table := make([]swissRow, len(field))
	for i, p := range field {
		table[i] = swissRow{player: p, score: scores[p.ID]}
	}
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].score != table[j].score {
			return table[i].score > table[j].score
		}
		return table[i].player.Elo > table[j].player.Elo
	})
	return table
}
