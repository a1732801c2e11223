package tournament

import (
	"fmt"
	"math"
	"sort"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// CircuitEvent is one event of the annual circuit. Weight scales the event's
// points; a zero weight decoded from params means the classical weight 1.
type CircuitEvent struct {
	Name          string  `mapstructure:"name" json:"name"`
	FieldSize     int     `mapstructure:"field_size" json:"field_size"`
	Rounds        int     `mapstructure:"rounds" json:"rounds"`
	AverageRating float64 `mapstructure:"average_rating" json:"average_rating"`
	Weight        float64 `mapstructure:"weight" json:"weight"`
}

// DefaultCircuitEvents is a representative season of elite events.
func DefaultCircuitEvents() []CircuitEvent {
	return []CircuitEvent{
		{Name: "SuperGM RR 1", FieldSize: 12, Rounds: 11, AverageRating: 2750, Weight: 1.0},
		{Name: "SuperGM RR 2", FieldSize: 10, Rounds: 9, AverageRating: 2730, Weight: 1.0},
		{Name: "Strong Open 1", FieldSize: 80, Rounds: 9, AverageRating: 2650, Weight: 1.0},
		{Name: "Strong Open 2", FieldSize: 80, Rounds: 9, AverageRating: 2670, Weight: 1.0},
		{Name: "SuperSwiss 1", FieldSize: 100, Rounds: 11, AverageRating: 2700, Weight: 1.0},
	}
}

// DefaultBasePoints are the basic points for places 1-8 of an event.
func DefaultBasePoints() []float64 {
	return []float64{11, 8, 7, 6, 5, 4, 3, 2}
}

// CircuitOptions configures the circuit.
type CircuitOptions struct {
	Events      []CircuitEvent `mapstructure:"events"`
	BasePoints  []float64      `mapstructure:"base_points"`
	KFactor     float64        `mapstructure:"k_factor"`
	WeightPivot float64        `mapstructure:"weight_pivot"`
	WeightScale float64        `mapstructure:"weight_scale"`
}

// DefaultCircuitOptions returns the default events and points table.
func DefaultCircuitOptions() CircuitOptions {
	return CircuitOptions{
		Events:      DefaultCircuitEvents(),
		BasePoints:  DefaultBasePoints(),
		KFactor:     10,
		WeightPivot: 2600,
		WeightScale: 200,
	}
}

func (o CircuitOptions) validate() error {
	if len(o.Events) == 0 {
		return fmt.Errorf("%w: circuit needs at least one event", ErrInvalidParams)
	}
	for _, ev := range o.Events {
		if ev.Rounds < 1 {
			return fmt.Errorf("%w: event %q needs at least one round", ErrInvalidParams, ev.Name)
		}
		if ev.FieldSize < 0 {
			return fmt.Errorf("%w: event %q has negative field_size", ErrInvalidParams, ev.Name)
		}
		if ev.AverageRating <= 0 {
			return fmt.Errorf("%w: event %q needs an average_rating", ErrInvalidParams, ev.Name)
		}
		if ev.Weight < 0 {
			return fmt.Errorf("%w: event %q has negative weight", ErrInvalidParams, ev.Name)
		}
	}
	if o.KFactor < 0 {
		return fmt.Errorf("%w: k_factor must not be negative", ErrInvalidParams)
	}
	return nil
}

// Circuit simulates a series of Swiss events and ranks players by points.
type Circuit struct {
	participants []*models.Player
	opts         CircuitOptions
	env          Env
}

// NewCircuit builds a circuit over participants.
func NewCircuit(participants []*models.Player, opts CircuitOptions, env Env) *Circuit {
	return &Circuit{participants: participants, opts: opts, env: env}
}

// NewCircuitFromParams is the registry factory for TypeCircuit.
func NewCircuitFromParams(participants []*models.Player, params map[string]any, env Env) (Tournament, error) {
	opts := DefaultCircuitOptions()
	if err := decodeParams(params, &opts); err != nil {
		return nil, err
	}
	for i := range opts.Events {
		if opts.Events[i].Weight == 0 {
			opts.Events[i].Weight = 1
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return NewCircuit(participants, opts, env), nil
}

// EventMultiplier is the rating factor k = max(0, (avg-2500)/100).
func EventMultiplier(averageRating float64) float64 {
	return math.Max(0, (averageRating-2500)/100)
}

// Points runs every event and returns the accumulated points per player id.
func (c *Circuit) Points() map[int]float64 {
	totals := make(map[int]float64)
	for _, ev := range c.opts.Events {
		for id, pts := range c.playEvent(ev) {
			totals[id] += pts
		}
	}
	return totals
}

// playEvent awards base points to the top half of finishers, capped at the
// length of the points table, scaled by event strength and weight.
func (c *Circuit) playEvent(ev CircuitEvent) map[int]float64 {
	points := make(map[int]float64)
	field := sampleField(c.env.Rng, c.participants, ev.FieldSize, c.opts.WeightPivot, c.opts.WeightScale)
	if len(field) < 2 {
		return points
	}
	table := playSwiss(c.env, field, ev.Rounds, c.opts.KFactor)

	k := EventMultiplier(ev.AverageRating)
	paid := len(table) / 2
	if paid > len(c.opts.BasePoints) {
		paid = len(c.opts.BasePoints)
	}
	for i := 0; i < paid; i++ {
		points[table[i].player.ID] += c.opts.BasePoints[i] * k * ev.Weight
	}
	return points
}

// Standings returns players with positive circuit points, ordered by points
// and then live rating.
func (c *Circuit) Standings(topN int) []*models.Player {
	if len(c.participants) < 2 {
		return []*models.Player{}
	}
	totals := c.Points()

	scored := make([]*models.Player, 0, len(totals))
	for _, p := range c.participants {
		if totals[p.ID] > 0 {
			scored = append(scored, p)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		pi, pj := totals[scored[i].ID], totals[scored[j].ID]
		if pi != pj {
			return pi > pj
		}
		return scored[i].Elo > scored[j].Elo
	})
	return truncate(scored, topN)
}
