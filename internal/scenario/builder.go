package scenario

import (
	"github.com/stitts-dev/candidates-sim/internal/models"
)

// Builder assembles QualificationConfig values. Every With method returns a
// new builder and leaves the receiver untouched.
type Builder struct {
	slots          []models.TournamentSlot
	target         int
	playerConfigs  map[int]models.PlayerConfig
	standingsDepth int
	keepQualified  bool
}

// DefaultTargetCandidates is the size of the candidates field.
const DefaultTargetCandidates = 8

// NewBuilder starts from the given slots with eight candidates and the
// default standings depth.
func NewBuilder(slots []models.TournamentSlot) Builder {
	return Builder{
		slots:          copySlots(slots),
		target:         DefaultTargetCandidates,
		playerConfigs:  map[int]models.PlayerConfig{},
		standingsDepth: models.DefaultStandingsDepth,
	}
}

func (b Builder) clone() Builder {
	out := b
	out.slots = copySlots(b.slots)
	out.playerConfigs = make(map[int]models.PlayerConfig, len(b.playerConfigs))
	for id, cfg := range b.playerConfigs {
		out.playerConfigs[id] = cfg
	}
	return out
}

// WithSlots replaces the slot list.
func (b Builder) WithSlots(slots []models.TournamentSlot) Builder {
	out := b.clone()
	out.slots = copySlots(slots)
	return out
}

// WithTargetCandidates sets how many players qualify per season.
func (b Builder) WithTargetCandidates(n int) Builder {
	out := b.clone()
	out.target = n
	return out
}

// WithPlayerConfigs merges per-player overrides into the existing ones.
func (b Builder) WithPlayerConfigs(configs map[int]models.PlayerConfig) Builder {
	out := b.clone()
	for id, cfg := range configs {
		out.playerConfigs[id] = cfg
	}
	return out
}

// WithSkipProbability sets the withdrawal probability of already-qualified
// players on every slot.
func (b Builder) WithSkipProbability(p float64) Builder {
	out := b.clone()
	for i := range out.slots {
		out.slots[i].QualifiedSkipProb = p
	}
	return out
}

// WithStandingsDepth sets how many finishers each tournament reports.
func (b Builder) WithStandingsDepth(depth int) Builder {
	out := b.clone()
	out.standingsDepth = depth
	return out
}

// WithKeepQualifiedInStandings toggles whether qualified players stay in the
// standings passed to allocation strategies.
func (b Builder) WithKeepQualifiedInStandings(keep bool) Builder {
	out := b.clone()
	out.keepQualified = keep
	return out
}

// Build returns an independent QualificationConfig.
func (b Builder) Build() *models.QualificationConfig {
	c := b.clone()
	return &models.QualificationConfig{
		TargetCandidates:         c.target,
		Slots:                    c.slots,
		PlayerConfigs:            c.playerConfigs,
		StandingsDepth:           c.standingsDepth,
		KeepQualifiedInStandings: c.keepQualified,
	}
}

func copySlots(slots []models.TournamentSlot) []models.TournamentSlot {
	out := make([]models.TournamentSlot, len(slots))
	for i, s := range slots {
		out[i] = s
		if s.Params != nil {
			out[i].Params = make(map[string]any, len(s.Params))
			for k, v := range s.Params {
				out[i].Params[k] = v
			}
		}
	}
	return out
}
