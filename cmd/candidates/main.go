package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/playerpool"
	"github.com/stitts-dev/candidates-sim/internal/scenario"
	"github.com/stitts-dev/candidates-sim/internal/simulator"
	"github.com/stitts-dev/candidates-sim/pkg/config"
	"github.com/stitts-dev/candidates-sim/pkg/logger"
)

var defaultScenarios = []string{
	scenario.PresetCurrent,
	scenario.PresetPureRating,
	scenario.PresetMoreRating,
	scenario.PresetSkip75,
}

type options struct {
	scenarios   []string
	seed        int64
	seeded      bool
	playersFile string
	poolSize    int
	topElo      float64
	augmentTo   float64
	champion    int
	excluded    []int
	ratingOnly  []int
	blocked     []string
	top         int
	jsonOut     bool
}

func main() {
	flags := pflag.NewFlagSet("candidates", pflag.ExitOnError)
	var opts options
	flags.StringSliceVarP(&opts.scenarios, "scenario", "s", defaultScenarios, "presets or scenario files to compare")
	flags.Int("seasons", 1000, "seasons per scenario")
	flags.Int("workers", 0, "simulation workers (0 = one per CPU)")
	flags.String("scenario-dir", "", "directory of extra scenario files")
	flags.String("log-level", "info", "log level")
	flags.Int64Var(&opts.seed, "seed", 0, "base seed (random when unset)")
	flags.StringVarP(&opts.playersFile, "players", "p", "", "player pool file (.json/.yaml); a synthetic pool is used when empty")
	flags.IntVar(&opts.poolSize, "pool-size", 150, "size of the synthetic pool")
	flags.Float64Var(&opts.topElo, "top-elo", 2850, "rating of the best synthetic player")
	flags.Float64Var(&opts.augmentTo, "augment-to", 0, "add synthetic players below the pool down to this rating")
	flags.IntVar(&opts.champion, "champion", 0, "id of the reigning champion (plays, never qualifies)")
	flags.IntSliceVar(&opts.excluded, "exclude", nil, "ids of players who do not take part")
	flags.IntSliceVar(&opts.ratingOnly, "rating-only", nil, "ids of players who only qualify by rating")
	flags.StringSliceVar(&opts.blocked, "block", nil, "id=tournament_type pairs a player never enters")
	flags.IntVar(&opts.top, "top", 15, "players shown per scenario")
	flags.BoolVar(&opts.jsonOut, "json", false, "print stats as JSON")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	opts.seeded = flags.Changed("seed")

	if err := config.BindFlags(flags, map[string]string{
		"DEFAULT_SEASONS":    "seasons",
		"SIMULATION_WORKERS": "workers",
		"SCENARIO_DIR":       "scenario-dir",
		"LOG_LEVEL":          "log-level",
	}); err != nil {
		logrus.Fatalf("Failed to bind flags: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *logrus.Logger) error {
	players, err := loadPool(opts)
	if err != nil {
		return err
	}
	overrides, err := playerOverrides(opts)
	if err != nil {
		return err
	}

	extra := map[string]scenario.Definition{}
	if cfg.ScenarioDir != "" {
		if extra, err = scenario.LoadDir(cfg.ScenarioDir); err != nil {
			return err
		}
	}

	results := make([]scenarioResult, 0, len(opts.scenarios))
	for _, name := range opts.scenarios {
		def, err := resolveScenario(name, extra)
		if err != nil {
			return err
		}
		def.PlayerConfigs = mergeConfigs(def.PlayerConfigs, overrides)
		qc, err := def.Config()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", def.Name, err)
		}

		runOpts := simulator.RunOptions{
			Options:    simulator.Options{Model: cfg.GameModel(), Logger: log},
			NumSeasons: cfg.DefaultSeasons,
			Workers:    cfg.SimulationWorkers,
		}
		if opts.seeded {
			seed := opts.seed
			runOpts.Seed = &seed
		}

		entry := logger.WithRunContext(uuid.NewString(), def.Name)
		entry.WithField("seasons", runOpts.NumSeasons).Info("Simulating scenario")
		stats, err := simulator.RunMonteCarlo(ctx, players, qc, runOpts)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", def.Name, err)
		}
		results = append(results, scenarioResult{Name: def.Name, Target: qc.TargetCandidates, Stats: stats})
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Printf("Pool: %d players, %d seasons per scenario\n\n", len(players), cfg.DefaultSeasons)
	if err := writeComparison(os.Stdout, results); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Println()
		if err := writeTopPlayers(os.Stdout, r, opts.top); err != nil {
			return err
		}
	}
	return nil
}

func loadPool(opts options) ([]models.Player, error) {
	var players []models.Player
	if opts.playersFile != "" {
		loaded, err := playerpool.Load(opts.playersFile)
		if err != nil {
			return nil, err
		}
		players = loaded
	} else {
		players = playerpool.Gradient(opts.poolSize, opts.topElo, playerpool.DefaultStep)
	}
	if opts.augmentTo > 0 {
		players = playerpool.Augment(players, opts.augmentTo, playerpool.DefaultStep)
	}
	return players, nil
}

// resolveScenario treats names with a scenario file extension as paths,
// then looks in the scenario dir, then in the presets.
func resolveScenario(name string, extra map[string]scenario.Definition) (scenario.Definition, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return scenario.LoadFile(name)
	}
	if def, ok := extra[name]; ok {
		return def, nil
	}
	return scenario.Preset(name)
}

// playerOverrides turns the participation flags into player configs.
func playerOverrides(opts options) (map[int]models.PlayerConfig, error) {
	out := map[int]models.PlayerConfig{}
	set := func(id int, mode models.ParticipationMode) {
		cfg := out[id]
		cfg.Mode = mode
		out[id] = cfg
	}
	if opts.champion != 0 {
		set(opts.champion, models.ModePlaysNotEligible)
	}
	for _, id := range opts.excluded {
		set(id, models.ModeExcluded)
	}
	for _, id := range opts.ratingOnly {
		set(id, models.ModeRatingOnly)
	}
	for _, pair := range opts.blocked {
		idStr, tournamentType, ok := strings.Cut(pair, "=")
		id, err := strconv.Atoi(idStr)
		if !ok || err != nil || tournamentType == "" {
			return nil, fmt.Errorf("invalid --block %q, want id=tournament_type", pair)
		}
		cfg := out[id]
		if cfg.Mode == "" {
			cfg.Mode = models.ModeFull
		}
		cfg.BlockedTournaments = append(cfg.BlockedTournaments, tournamentType)
		out[id] = cfg
	}
	return out, nil
}

func mergeConfigs(base, overrides map[int]models.PlayerConfig) map[int]models.PlayerConfig {
	merged := make(map[int]models.PlayerConfig, len(base)+len(overrides))
	for id, cfg := range base {
		merged[id] = cfg
	}
	for id, cfg := range overrides {
		merged[id] = cfg
	}
	return merged
}
