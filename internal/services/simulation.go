package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/playerpool"
	"github.com/stitts-dev/candidates-sim/internal/scenario"
	"github.com/stitts-dev/candidates-sim/internal/simulator"
	"github.com/stitts-dev/candidates-sim/internal/store"
	"github.com/stitts-dev/candidates-sim/pkg/logger"
)

// ErrValidation marks request errors the caller can fix.
var ErrValidation = errors.New("invalid request")

const cacheRetries = 3

// RunStore is the persistence the simulation service needs.
type RunStore interface {
	Players(ctx context.Context) ([]models.Player, error)
	ReplacePlayers(ctx context.Context, players []models.Player) error
	CreateRun(ctx context.Context, run *store.SimulationRun) error
	CompleteRun(ctx context.Context, run *store.SimulationRun, runErr error) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]store.SimulationRun, int64, error)
}

// Broadcaster pushes run events to subscribers.
type Broadcaster interface {
	BroadcastToRun(runID, messageType string, data interface{})
}

// SimulationSettings are the service limits and defaults.
type SimulationSettings struct {
	DefaultSeasons int
	MaxSeasons     int
	Workers        int
	CacheTTL       time.Duration
	Model          game.Model
}

// ScenarioRequest selects a scenario: a named preset or scenario file, or an
// inline definition. PlayerConfigs are merged over the scenario's own.
type ScenarioRequest struct {
	Preset        string                      `json:"preset,omitempty"`
	Scenario      *scenario.Definition        `json:"scenario,omitempty"`
	PlayerConfigs map[int]models.PlayerConfig `json:"player_configs,omitempty"`
	// Players replaces the stored pool for this request.
	Players []models.Player `json:"players,omitempty"`
	// AugmentToElo deepens the pool with synthetic players down to this rating.
	AugmentToElo float64 `json:"augment_to_elo,omitempty"`
}

// RunRequest starts a Monte Carlo run. A client that wants progress picks
// RunID itself and subscribes to it before posting.
type RunRequest struct {
	ScenarioRequest
	RunID   *uuid.UUID `json:"run_id,omitempty"`
	Seasons int        `json:"seasons,omitempty"`
	Seed    *int64     `json:"seed,omitempty"`
}

type RunResult struct {
	RunID    uuid.UUID                  `json:"run_id"`
	Scenario string                     `json:"scenario"`
	Cached   bool                       `json:"cached"`
	Stats    *simulator.SimulationStats `json:"stats"`
}

type SeasonRequest struct {
	ScenarioRequest
	Seed *int64 `json:"seed,omitempty"`
}

type SeasonResult struct {
	Scenario   string          `json:"scenario"`
	Seed       int64           `json:"seed"`
	Qualifiers []models.Player `json:"qualifiers"`
}

// ScenarioSummary describes an available scenario.
type ScenarioSummary struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	TargetCandidates int    `json:"target_candidates"`
	Slots            int    `json:"slots"`
}

type SimulationService struct {
	store     RunStore
	cache     Cache
	hub       Broadcaster
	settings  SimulationSettings
	scenarios map[string]scenario.Definition
	logger    *logrus.Logger
}

// NewSimulationService serves the built-in presets plus extra, which take
// precedence on a name clash. cache and hub may be nil.
func NewSimulationService(runStore RunStore, cache Cache, hub Broadcaster, settings SimulationSettings, extra map[string]scenario.Definition, log *logrus.Logger) *SimulationService {
	scenarios := scenario.Presets()
	for name, def := range extra {
		scenarios[name] = def
	}
	if settings.DefaultSeasons <= 0 {
		settings.DefaultSeasons = 1000
	}
	if settings.MaxSeasons < settings.DefaultSeasons {
		settings.MaxSeasons = settings.DefaultSeasons
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &SimulationService{
		store:     runStore,
		cache:     cache,
		hub:       hub,
		settings:  settings,
		scenarios: scenarios,
		logger:    log,
	}
}

// Scenarios lists the available scenarios by name.
func (s *SimulationService) Scenarios() []ScenarioSummary {
	out := make([]ScenarioSummary, 0, len(s.scenarios))
	for _, name := range scenario.Names(s.scenarios) {
		def := s.scenarios[name]
		target := def.TargetCandidates
		if target == 0 {
			target = scenario.DefaultTargetCandidates
		}
		out = append(out, ScenarioSummary{
			Name:             name,
			Description:      def.Description,
			TargetCandidates: target,
			Slots:            len(def.Slots),
		})
	}
	return out
}

// resolveScenario returns the definition with request overrides merged in.
func (s *SimulationService) resolveScenario(req ScenarioRequest) (scenario.Definition, error) {
	var def scenario.Definition
	switch {
	case req.Scenario != nil:
		def = *req.Scenario
		if def.Name == "" {
			def.Name = "custom"
		}
	case req.Preset != "":
		d, ok := s.scenarios[req.Preset]
		if !ok {
			return scenario.Definition{}, fmt.Errorf("%w: preset %q", scenario.ErrNotFound, req.Preset)
		}
		def = d
	default:
		return scenario.Definition{}, fmt.Errorf("%w: preset or scenario is required", ErrValidation)
	}

	if len(req.PlayerConfigs) > 0 {
		merged := make(map[int]models.PlayerConfig, len(def.PlayerConfigs)+len(req.PlayerConfigs))
		for id, cfg := range def.PlayerConfigs {
			merged[id] = cfg
		}
		for id, cfg := range req.PlayerConfigs {
			merged[id] = cfg
		}
		def.PlayerConfigs = merged
	}
	return def, nil
}

// resolvePlayers returns the request pool, or the stored one.
func (s *SimulationService) resolvePlayers(ctx context.Context, req ScenarioRequest) ([]models.Player, error) {
	players := req.Players
	if len(players) == 0 {
		stored, err := s.Players(ctx)
		if err != nil {
			return nil, err
		}
		players = stored
	} else {
		if err := playerpool.Validate(players); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		players = models.ClonePool(players)
		models.AssignInitialRanks(players)
	}
	if req.AugmentToElo > 0 {
		players = playerpool.Augment(players, req.AugmentToElo, playerpool.DefaultStep)
	}
	return players, nil
}

// config builds the qualification config and checks it against the
// tournament registry.
func (s *SimulationService) config(def scenario.Definition) (*models.QualificationConfig, error) {
	cfg, err := def.Config()
	if err != nil {
		return nil, err
	}
	if _, err := simulator.NewQualificationSimulator(cfg, s.simOptions()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SimulationService) simOptions() simulator.Options {
	return simulator.Options{Model: s.settings.Model, Logger: s.logger}
}

func (s *SimulationService) seasons(n int) (int, error) {
	if n == 0 {
		return s.settings.DefaultSeasons, nil
	}
	if n < 0 || n > s.settings.MaxSeasons {
		return 0, fmt.Errorf("%w: seasons must be in [1, %d], got %d", ErrValidation, s.settings.MaxSeasons, n)
	}
	return n, nil
}

// Run executes a Monte Carlo run, persists it and caches seeded results.
// Progress is broadcast to subscribers of the run id.
func (s *SimulationService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	def, err := s.resolveScenario(req.ScenarioRequest)
	if err != nil {
		return nil, err
	}
	cfg, err := s.config(def)
	if err != nil {
		return nil, err
	}
	seasons, err := s.seasons(req.Seasons)
	if err != nil {
		return nil, err
	}
	runID, err := s.newRunID(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	players, err := s.resolvePlayers(ctx, req.ScenarioRequest)
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	fingerprint, err := Fingerprint(players, def, s.settings.Model, seasons, seed)
	if err != nil {
		return nil, err
	}

	if req.Seed != nil && s.cache != nil {
		var cached RunResult
		if err := s.cache.Get(ctx, StatsCacheKey(fingerprint), &cached); err == nil {
			cached.Cached = true
			if req.RunID != nil {
				s.broadcast(runID.String(), MessageComplete, &cached)
			}
			return &cached, nil
		} else if !errors.Is(err, ErrCacheMiss) {
			s.logger.WithError(err).Warn("Stats cache lookup failed")
		}
	}

	definition, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	run := &store.SimulationRun{
		ID:          runID,
		Scenario:    def.Name,
		Fingerprint: fingerprint,
		Status:      store.RunStatusRunning,
		Seasons:     seasons,
		Seed:        seed,
		PoolSize:    len(players),
		Definition:  datatypes.JSON(definition),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"run_id": run.ID.String(), "scenario": def.Name})

	stats, runErr := s.runMonteCarlo(ctx, run.ID.String(), players, cfg, seasons, seed)

	// record the outcome even when the request was cancelled
	saveCtx := context.WithoutCancel(ctx)
	if runErr == nil {
		if runErr = fillRunStats(run, stats); runErr == nil {
			runErr = s.store.CompleteRun(saveCtx, run, nil)
		}
	}
	if runErr != nil {
		if err := s.store.CompleteRun(saveCtx, run, runErr); err != nil {
			log.WithError(err).Error("Failed to record failed run")
		}
		s.broadcast(run.ID.String(), MessageFailed, map[string]string{"error": runErr.Error()})
		return nil, runErr
	}

	result := &RunResult{RunID: run.ID, Scenario: def.Name, Stats: stats}
	s.broadcast(run.ID.String(), MessageComplete, result)

	if req.Seed != nil && s.cache != nil {
		if err := s.cache.SetWithRetry(saveCtx, StatsCacheKey(fingerprint), result, s.settings.CacheTTL, cacheRetries); err != nil {
			log.WithError(err).Warn("Failed to cache simulation stats")
		}
	}

	log.WithFields(logrus.Fields{
		"seasons":       seasons,
		"valid_seasons": stats.ValidSeasons,
		"duration_ms":   run.DurationMs,
	}).Info("Simulation run stored")
	return result, nil
}

// newRunID returns the requested run id, or a fresh one. A requested id must
// not belong to a stored run.
func (s *SimulationService) newRunID(ctx context.Context, requested *uuid.UUID) (uuid.UUID, error) {
	if requested == nil {
		return uuid.New(), nil
	}
	if *requested == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: run_id must not be the nil UUID", ErrValidation)
	}
	_, err := s.store.GetRun(ctx, *requested)
	switch {
	case err == nil:
		return uuid.Nil, fmt.Errorf("%w: run %s already exists", ErrValidation, *requested)
	case errors.Is(err, store.ErrNotFound):
		return *requested, nil
	default:
		return uuid.Nil, err
	}
}

func (s *SimulationService) runMonteCarlo(ctx context.Context, runID string, players []models.Player, cfg *models.QualificationConfig, seasons int, seed int64) (*simulator.SimulationStats, error) {
	progress := make(chan simulator.Progress, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for p := range progress {
			s.broadcast(runID, MessageProgress, p)
		}
	}()

	stats, err := simulator.RunMonteCarlo(ctx, players, cfg, simulator.RunOptions{
		Options:    s.simOptions(),
		NumSeasons: seasons,
		Seed:       &seed,
		Workers:    s.settings.Workers,
		Progress:   progress,
	})
	close(progress)
	wg.Wait()
	return stats, err
}

func fillRunStats(run *store.SimulationRun, stats *simulator.SimulationStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	run.Stats = datatypes.JSON(data)
	run.ValidSeasons = stats.ValidSeasons
	run.MeanAvgEloOriginal = stats.MeanAvgEloOriginal
	run.MeanAvgEloLive = stats.MeanAvgEloLive
	run.TopRatedCaptureRate = stats.TopRatedCaptureRate
	return nil
}

func (s *SimulationService) broadcast(runID, messageType string, data interface{}) {
	if s.hub != nil {
		s.hub.BroadcastToRun(runID, messageType, data)
	}
}

// SimulateSeason plays one season and returns its qualifiers.
func (s *SimulationService) SimulateSeason(ctx context.Context, req SeasonRequest) (*SeasonResult, error) {
	def, err := s.resolveScenario(req.ScenarioRequest)
	if err != nil {
		return nil, err
	}
	cfg, err := s.config(def)
	if err != nil {
		return nil, err
	}
	players, err := s.resolvePlayers(ctx, req.ScenarioRequest)
	if err != nil {
		return nil, err
	}

	seed := rand.Int63()
	if req.Seed != nil {
		seed = *req.Seed
	}
	qualifiers, err := simulator.SimulateOneSeason(players, cfg, seed, s.simOptions())
	if err != nil {
		return nil, err
	}
	return &SeasonResult{Scenario: def.Name, Seed: seed, Qualifiers: qualifiers}, nil
}

func (s *SimulationService) GetRun(ctx context.Context, id uuid.UUID) (*store.SimulationRun, error) {
	return s.store.GetRun(ctx, id)
}

func (s *SimulationService) ListRuns(ctx context.Context, limit, offset int) ([]store.SimulationRun, int64, error) {
	return s.store.ListRuns(ctx, limit, offset)
}

// Players returns the stored pool, through the cache when there is one.
func (s *SimulationService) Players(ctx context.Context) ([]models.Player, error) {
	if s.cache != nil {
		var cached []models.Player
		err := s.cache.Get(ctx, PlayersCacheKey(), &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.WithError(err).Warn("Player cache lookup failed")
		}
	}

	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetWithRetry(ctx, PlayersCacheKey(), players, s.settings.CacheTTL, 1); err != nil {
			s.logger.WithError(err).Warn("Failed to cache player pool")
		}
	}
	return players, nil
}

// ReplacePlayers validates and stores a new pool. Initial ranks are taken
// from the rating order.
func (s *SimulationService) ReplacePlayers(ctx context.Context, players []models.Player) ([]models.Player, error) {
	if err := playerpool.Validate(players); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	pool := models.ClonePool(players)
	if pool == nil {
		pool = []models.Player{}
	}
	models.AssignInitialRanks(pool)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].InitialRank < pool[j].InitialRank })

	if err := s.store.ReplacePlayers(ctx, pool); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, PlayersCacheKey()); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate player cache")
		}
	}
	s.logger.WithField("players", len(pool)).Info("Player pool replaced")
	return pool, nil
}
