package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// DefaultOutlierThresholds are the pre-season ratings below which a
// qualifier is counted as an outlier.
var DefaultOutlierThresholds = []float64{2700, 2650}

// RunOptions configures a Monte Carlo run.
type RunOptions struct {
	Options

	NumSeasons int
	// Seed makes the run reproducible. Nil seeds from the clock.
	Seed *int64
	// Workers defaults to runtime.NumCPU.
	Workers int
	// OutlierThresholds defaults to DefaultOutlierThresholds.
	OutlierThresholds []float64
	// Progress receives periodic updates. Sends never block the run.
	Progress chan<- Progress
}

// Progress reports how far a Monte Carlo run has got.
type Progress struct {
	Completed              int           `json:"completed"`
	Total                  int           `json:"total"`
	ValidSeasons           int           `json:"valid_seasons"`
	StartTime              time.Time     `json:"start_time"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
}

// seasonOutcome is what one trial contributes to the aggregates.
type seasonOutcome struct {
	qualifierIDs []int
	avgOriginal  float64
	avgLive      float64
}

func (o seasonOutcome) valid() bool { return len(o.qualifierIDs) > 0 }

type trialResult struct {
	index   int
	outcome seasonOutcome
}

// RunMonteCarlo simulates NumSeasons independent seasons and aggregates the
// qualifiers. Every trial runs on its own clone of players with a random
// source derived from the base seed and the trial index, and results are
// reduced in trial order, so a fixed seed gives identical stats for any
// worker count. Cancelling ctx stops the run between trials.
func RunMonteCarlo(ctx context.Context, players []models.Player, config *models.QualificationConfig, opts RunOptions) (*SimulationStats, error) {
	if opts.NumSeasons <= 0 {
		return nil, fmt.Errorf("%w: num_seasons must be positive, got %d", models.ErrInvalidConfig, opts.NumSeasons)
	}
	sim, err := NewQualificationSimulator(config, opts.Options)
	if err != nil {
		return nil, err
	}
	log := sim.opts.Logger

	baseSeed := time.Now().UnixNano()
	if opts.Seed != nil {
		baseSeed = *opts.Seed
	}
	thresholds := opts.OutlierThresholds
	if thresholds == nil {
		thresholds = DefaultOutlierThresholds
	}
	numWorkers := runtime.NumCPU()
	if opts.Workers > 0 {
		numWorkers = opts.Workers
	}
	if numWorkers > opts.NumSeasons {
		numWorkers = opts.NumSeasons
	}

	original := make(map[int]float64, len(players))
	for _, p := range players {
		original[p.ID] = p.Elo
	}

	start := time.Now()
	log.WithFields(logrus.Fields{
		"seasons": opts.NumSeasons,
		"workers": numWorkers,
		"players": len(players),
		"slots":   len(config.Slots),
		"seed":    baseSeed,
	}).Info("Starting Monte Carlo run")

	trialsChan := make(chan int, numWorkers)
	resultsChan := make(chan trialResult, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range trialsChan {
				if ctx.Err() != nil {
					continue
				}
				rng := rand.New(rand.NewSource(trialSeed(baseSeed, idx)))
				resultsChan <- trialResult{index: idx, outcome: runTrial(sim, players, original, rng)}
			}
		}()
	}

	go func() {
		defer close(trialsChan)
		for i := 0; i < opts.NumSeasons; i++ {
			select {
			case trialsChan <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	outcomes := make([]seasonOutcome, opts.NumSeasons)
	completed, valid := 0, 0
	every := progressInterval(opts.NumSeasons)
	for r := range resultsChan {
		outcomes[r.index] = r.outcome
		completed++
		if r.outcome.valid() {
			valid++
		}
		if opts.Progress != nil && (completed%every == 0 || completed == opts.NumSeasons) {
			reportProgress(opts.Progress, start, completed, valid, opts.NumSeasons)
		}
	}

	if err := ctx.Err(); err != nil {
		log.WithError(err).WithField("completed", completed).Warn("Monte Carlo run cancelled")
		return nil, err
	}

	stats := aggregate(players, config.TargetCandidates, outcomes, thresholds, original)
	stats.Seed = baseSeed
	stats.TotalSeasons = opts.NumSeasons

	log.WithFields(logrus.Fields{
		"seasons":       opts.NumSeasons,
		"valid_seasons": stats.ValidSeasons,
		"duration":      time.Since(start).String(),
	}).Info("Monte Carlo run completed")
	return stats, nil
}

func runTrial(sim *QualificationSimulator, players []models.Player, original map[int]float64, rng *rand.Rand) seasonOutcome {
	season := models.Pointers(models.ClonePool(players))
	qualifiers := sim.SimulateSeason(season, rng)
	if len(qualifiers) == 0 {
		return seasonOutcome{}
	}

	out := seasonOutcome{qualifierIDs: make([]int, len(qualifiers))}
	var sumOriginal, sumLive float64
	for i, p := range qualifiers {
		out.qualifierIDs[i] = p.ID
		sumOriginal += original[p.ID]
		sumLive += p.Elo
	}
	n := float64(len(qualifiers))
	out.avgOriginal = sumOriginal / n
	out.avgLive = sumLive / n
	return out
}

// trialSeed mixes the base seed with the trial index (splitmix64 finalizer)
// so neighbouring trials get unrelated streams.
func trialSeed(base int64, idx int) int64 {
	z := uint64(base) + uint64(idx+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}

func progressInterval(total int) int {
	every := total / 100
	if every < 1 {
		every = 1
	}
	return every
}

func reportProgress(ch chan<- Progress, start time.Time, completed, valid, total int) {
	elapsed := time.Since(start)
	var eta time.Duration
	if completed > 0 {
		perTrial := elapsed / time.Duration(completed)
		eta = perTrial * time.Duration(total-completed)
	}
	select {
	case ch <- Progress{
		Completed:              completed,
		Total:                  total,
		ValidSeasons:           valid,
		StartTime:              start,
		EstimatedTimeRemaining: eta,
	}:
	default:
		// Don't block if channel is full
	}
}
