package simulator

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/participation"
	"github.com/stitts-dev/candidates-sim/internal/tournament"
)

// Options holds the collaborators shared by every season of a run.
type Options struct {
	Registry *tournament.Registry
	Model    game.Model
	Logger   *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = tournament.DefaultRegistry()
	}
	o.Model = o.Model.OrDefault()
	if o.Logger == nil {
		o.Logger = silentLogger()
	}
	return o
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// QualificationSimulator plays the configured slots of one qualification
// cycle. It holds no per-season state and may be shared between goroutines.
type QualificationSimulator struct {
	config *models.QualificationConfig
	opts   Options
}

// NewQualificationSimulator validates the config against the registry so
// unknown tournament types fail before any season runs.
func NewQualificationSimulator(config *models.QualificationConfig, opts Options) (*QualificationSimulator, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", models.ErrInvalidConfig)
	}
	opts = opts.withDefaults()
	if err := opts.Registry.Validate(config); err != nil {
		return nil, err
	}
	return &QualificationSimulator{config: config, opts: opts}, nil
}

// Config returns the qualification config being simulated.
func (s *QualificationSimulator) Config() *models.QualificationConfig {
	return s.config
}

// SimulateSeason runs every slot in order over the season's players and
// returns the qualifiers, at most TargetCandidates of them. players must be
// a per-season clone: live ratings are updated in place.
func (s *QualificationSimulator) SimulateSeason(players []*models.Player, rng *rand.Rand) []*models.Player {
	cfg := s.config
	mgr := participation.NewManager(players, cfg, rng)
	env := tournament.Env{Rng: rng, Model: s.opts.Model}
	log := s.opts.Logger

	qualifiers := make([]*models.Player, 0, cfg.TargetCandidates)
	for i, slot := range cfg.Slots {
		if len(qualifiers) >= cfg.TargetCandidates {
			break
		}

		standings, err := s.standings(slot, players, mgr, env)
		if err != nil {
			// params were validated up front, so this only happens if the
			// registry was changed after construction
			log.WithError(err).WithField("slot", i).Warn("Skipping slot")
			continue
		}
		if len(standings) == 0 {
			log.WithFields(logrus.Fields{"slot": i, "type": slot.TournamentType}).Debug("No standings for slot")
			continue
		}

		eligible := mgr.EligibleStandings(standings, cfg.KeepQualifiedInStandings)
		if len(eligible) == 0 {
			continue
		}

		picked := slot.Strategy.Allocate(eligible, slot.MaxSpots, mgr.Qualified())
		for _, p := range picked {
			if mgr.IsQualified(p.ID) || !mgr.EligibleByMode(p) {
				continue
			}
			mgr.MarkQualified(p)
			qualifiers = append(qualifiers, p)
		}
		log.WithFields(logrus.Fields{
			"slot":      i,
			"type":      slot.TournamentType,
			"qualified": len(qualifiers),
		}).Debug("Slot allocated")
	}

	if len(qualifiers) > cfg.TargetCandidates {
		qualifiers = qualifiers[:cfg.TargetCandidates]
	}
	return qualifiers
}

func (s *QualificationSimulator) standings(slot models.TournamentSlot, players []*models.Player, mgr *participation.Manager, env tournament.Env) ([]*models.Player, error) {
	if slot.TournamentType == tournament.TypeRating {
		byRating := make([]*models.Player, len(players))
		copy(byRating, players)
		models.SortByElo(byRating)
		return byRating, nil
	}

	participants := mgr.Participants(slot)
	if len(participants) < 2 {
		return nil, nil
	}
	t, err := s.opts.Registry.New(slot.TournamentType, participants, slot.Params, env)
	if err != nil {
		return nil, err
	}
	return t.Standings(s.config.StandingsDepth), nil
}

// SimulateOneSeason runs a single season on a fresh copy of players. The
// returned qualifiers carry their end-of-season live ratings.
func SimulateOneSeason(players []models.Player, config *models.QualificationConfig, seed int64, opts Options) ([]models.Player, error) {
	sim, err := NewQualificationSimulator(config, opts)
	if err != nil {
		return nil, err
	}
	season := models.Pointers(models.ClonePool(players))
	rng := rand.New(rand.NewSource(seed))

	qualifiers := sim.SimulateSeason(season, rng)
	out := make([]models.Player, len(qualifiers))
	for i, p := range qualifiers {
		out[i] = *p
	}
	return out, nil
}
