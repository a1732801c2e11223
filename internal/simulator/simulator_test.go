package simulator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/candidates-sim/internal/allocation"
	"github.com/stitts-dev/candidates-sim/internal/models"
	"github.com/stitts-dev/candidates-sim/internal/tournament"
)

func gradientPool(n int) []models.Player {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{ID: i + 1, Name: "Player", Elo: 2850 - float64(i)*5, InitialRank: i + 1}
	}
	return players
}

func ratingOnlyConfig() *models.QualificationConfig {
	return &models.QualificationConfig{
		TargetCandidates: 8,
		Slots: []models.TournamentSlot{
			{TournamentType: tournament.TypeRating, MaxSpots: 8, Strategy: allocation.Rating(8)},
		},
		StandingsDepth: models.DefaultStandingsDepth,
	}
}

func fullCycleConfig(players map[int]models.PlayerConfig) *models.QualificationConfig {
	return &models.QualificationConfig{
		TargetCandidates: 8,
		Slots: []models.TournamentSlot{
			{TournamentType: tournament.TypeCircuit, MaxSpots: 1, Strategy: allocation.StrictTopN()},
			{TournamentType: tournament.TypeSwiss, MaxSpots: 2, Strategy: allocation.StrictTopN(), QualifiedSkipProb: 0.3},
			{TournamentType: tournament.TypeKnockout, MaxSpots: 3, Strategy: allocation.Spillover()},
			{TournamentType: tournament.TypeCircuit, MaxSpots: 2, Strategy: allocation.Circuit(1, 2)},
			{TournamentType: tournament.TypeRating, MaxSpots: 1, Strategy: allocation.Rating(1)},
		},
		PlayerConfigs:  players,
		StandingsDepth: models.DefaultStandingsDepth,
	}
}

func seed(v int64) *int64 { return &v }

func TestRunMonteCarlo_RatingOnlyIsDeterministicMeritocracy(t *testing.T) {
	pool := gradientPool(150)
	stats, err := RunMonteCarlo(context.Background(), pool, ratingOnlyConfig(), RunOptions{
		NumSeasons: 100,
		Seed:       seed(1),
		Workers:    4,
	})
	require.NoError(t, err)
	require.False(t, stats.NoData)

	assert.Equal(t, 100, stats.ValidSeasons)
	require.Len(t, stats.QualificationProbs, 150)
	for _, p := range pool {
		want := 0.0
		if p.ID <= 8 {
			want = 1.0
		}
		assert.Equal(t, want, stats.Probability(p.ID), "player %d", p.ID)
	}

	// top eight average 2850..2815
	assert.InDelta(t, 2832.5, stats.MeanAvgEloOriginal, 1e-9)
	assert.InDelta(t, 2832.5, stats.MeanAvgEloLive, 1e-9)
	assert.InDelta(t, 0, stats.VarAvgEloLive, 1e-6)
	assert.Equal(t, 0.0, stats.StdDevAvgEloOriginal())
	assert.Equal(t, 1.0, stats.TopRatedCaptureRate)
	assert.Less(t, stats.RankCorrelation, 0.0)
	assert.Equal(t, 2815.0, stats.MinQualifierElo)
	for _, o := range stats.Outliers {
		assert.Zero(t, o.Qualifiers)
	}
	assert.Equal(t, 1, stats.TopPlayers(1)[0].ID)
}

func TestRunMonteCarlo_NoData(t *testing.T) {
	t.Run("empty pool", func(t *testing.T) {
		stats, err := RunMonteCarlo(context.Background(), nil, ratingOnlyConfig(), RunOptions{NumSeasons: 10, Seed: seed(3)})
		require.NoError(t, err)
		assert.True(t, stats.NoData)
		assert.Zero(t, stats.ValidSeasons)
		assert.Equal(t, 10, stats.TotalSeasons)
		assert.Nil(t, stats.QualificationProbs)
	})

	t.Run("single player tournament", func(t *testing.T) {
		cfg := &models.QualificationConfig{
			TargetCandidates: 8,
			Slots: []models.TournamentSlot{
				{TournamentType: tournament.TypeSwiss, MaxSpots: 2, Strategy: allocation.StrictTopN()},
			},
		}
		stats, err := RunMonteCarlo(context.Background(), gradientPool(1), cfg, RunOptions{NumSeasons: 10, Seed: seed(3)})
		require.NoError(t, err)
		assert.True(t, stats.NoData)
		assert.Zero(t, stats.ValidSeasons)
	})
}

func TestRunMonteCarlo_SameSeedSameStats(t *testing.T) {
	pool := gradientPool(150)
	cfg := fullCycleConfig(nil)

	first, err := RunMonteCarlo(context.Background(), pool, cfg, RunOptions{NumSeasons: 24, Seed: seed(7), Workers: 1})
	require.NoError(t, err)
	second, err := RunMonteCarlo(context.Background(), pool, cfg, RunOptions{NumSeasons: 24, Seed: seed(7), Workers: 4})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 24, first.ValidSeasons)

	// the canonical pool is never mutated
	assert.Equal(t, gradientPool(150), pool)
}

func TestRunMonteCarlo_IneligibleModesNeverQualify(t *testing.T) {
	pool := gradientPool(150)
	cfg := fullCycleConfig(map[int]models.PlayerConfig{
		1: {Mode: models.ModeExcluded},
		2: {Mode: models.ModePlaysNotEligible},
		3: {Mode: models.ModeRatingOnly},
	})
	stats, err := RunMonteCarlo(context.Background(), pool, cfg, RunOptions{NumSeasons: 30, Seed: seed(11)})
	require.NoError(t, err)

	assert.Zero(t, stats.Probability(1))
	assert.Zero(t, stats.Probability(2))
	// the rating slot at the end still reaches rating-only players
	assert.Greater(t, stats.Probability(3), 0.0)
}

func TestRunMonteCarlo_ConfigErrorsFailFast(t *testing.T) {
	cfg := ratingOnlyConfig()
	cfg.Slots = append(cfg.Slots, models.TournamentSlot{
		TournamentType: "rapid_league", MaxSpots: 1, Strategy: allocation.Spillover(),
	})
	_, err := RunMonteCarlo(context.Background(), gradientPool(20), cfg, RunOptions{NumSeasons: 5})
	assert.ErrorIs(t, err, tournament.ErrUnknownType)

	_, err = RunMonteCarlo(context.Background(), gradientPool(20), ratingOnlyConfig(), RunOptions{NumSeasons: 0})
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = RunMonteCarlo(context.Background(), gradientPool(20), nil, RunOptions{NumSeasons: 5})
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestRunMonteCarlo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunMonteCarlo(ctx, gradientPool(150), fullCycleConfig(nil), RunOptions{NumSeasons: 50, Seed: seed(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMonteCarlo_ReportsProgress(t *testing.T) {
	progress := make(chan Progress, 200)
	_, err := RunMonteCarlo(context.Background(), gradientPool(30), ratingOnlyConfig(), RunOptions{
		NumSeasons: 20,
		Seed:       seed(5),
		Progress:   progress,
	})
	require.NoError(t, err)
	close(progress)

	var last Progress
	for p := range progress {
		last = p
	}
	assert.Equal(t, 20, last.Completed)
	assert.Equal(t, 20, last.Total)
	assert.Equal(t, 20, last.ValidSeasons)
}

func TestSimulateOneSeason_Invariants(t *testing.T) {
	pool := gradientPool(150)
	cfg := fullCycleConfig(nil)
	for s := int64(0); s < 10; s++ {
		quals, err := SimulateOneSeason(pool, cfg, s, Options{})
		require.NoError(t, err)
		assert.Len(t, quals, 8)

		seen := make(map[int]bool)
		for _, q := range quals {
			assert.False(t, seen[q.ID], "duplicate qualifier %d", q.ID)
			seen[q.ID] = true
		}
	}
}

func TestSimulateOneSeason_SameSeedSameQualifiers(t *testing.T) {
	pool := gradientPool(150)
	cfg := fullCycleConfig(nil)
	a, err := SimulateOneSeason(pool, cfg, 42, Options{})
	require.NoError(t, err)
	b, err := SimulateOneSeason(pool, cfg, 42, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulateSeason_PlaysNotEligibleMovesRatings(t *testing.T) {
	cfg := &models.QualificationConfig{
		TargetCandidates: 2,
		Slots: []models.TournamentSlot{
			{TournamentType: tournament.TypeSwiss, MaxSpots: 2, Strategy: allocation.Spillover(),
				Params: map[string]any{"field_size": 0, "rounds": 7}},
		},
		PlayerConfigs: map[int]models.PlayerConfig{1: {Mode: models.ModePlaysNotEligible}},
	}
	sim, err := NewQualificationSimulator(cfg, Options{})
	require.NoError(t, err)

	season := models.Pointers(gradientPool(12))
	quals := sim.SimulateSeason(season, rand.New(rand.NewSource(9)))

	assert.Len(t, quals, 2)
	assert.NotContains(t, models.IDs(quals), 1)
	assert.NotEqual(t, 2850.0, season[0].Elo)
}

func TestSimulateSeason_KeepQualifiedLosesStrictSpots(t *testing.T) {
	cfg := &models.QualificationConfig{
		TargetCandidates: 8,
		Slots: []models.TournamentSlot{
			{TournamentType: tournament.TypeRating, MaxSpots: 3, Strategy: allocation.Rating(3)},
			{TournamentType: tournament.TypeRating, MaxSpots: 3, Strategy: allocation.StrictTopN()},
		},
		KeepQualifiedInStandings: true,
	}
	sim, err := NewQualificationSimulator(cfg, Options{})
	require.NoError(t, err)

	quals := sim.SimulateSeason(models.Pointers(gradientPool(20)), rand.New(rand.NewSource(1)))
	// the second slot's top three already hold spots, so it adds nobody
	assert.Equal(t, []int{1, 2, 3}, models.IDs(quals))

	cfg.KeepQualifiedInStandings = false
	quals = sim.SimulateSeason(models.Pointers(gradientPool(20)), rand.New(rand.NewSource(1)))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, models.IDs(quals))
}

func TestAggregate(t *testing.T) {
	pool := gradientPool(4)
	original := map[int]float64{1: 2850, 2: 2845, 3: 2840, 4: 2835}
	outcomes := []seasonOutcome{
		{qualifierIDs: []int{1, 2}, avgOriginal: 2847.5, avgLive: 2850},
		{},
		{qualifierIDs: []int{1, 4}, avgOriginal: 2842.5, avgLive: 2840},
	}
	stats := aggregate(pool, 2, outcomes, []float64{2840}, original)

	assert.False(t, stats.NoData)
	assert.Equal(t, 2, stats.ValidSeasons)
	assert.Equal(t, 1.0, stats.Probability(1))
	assert.Equal(t, 0.5, stats.Probability(2))
	assert.Equal(t, 0.0, stats.Probability(3))
	assert.InDelta(t, 2845, stats.MeanAvgEloOriginal, 1e-9)
	assert.InDelta(t, 2845, stats.MeanAvgEloLive, 1e-9)
	assert.InDelta(t, 25, stats.VarAvgEloLive, 1e-6)
	assert.InDelta(t, 5, stats.StdDevAvgEloLive(), 1e-6)
	assert.Equal(t, 2835.0, stats.MinQualifierElo)
	assert.Equal(t, []OutlierCount{{Threshold: 2840, Qualifiers: 1, Seasons: 1}}, stats.Outliers)
	assert.InDelta(t, 0.75, stats.TopRatedCaptureRate, 1e-12)
	assert.Equal(t, []int{1, 2, 4, 3}, resultIDs(stats.Players))

	assert.True(t, aggregate(pool, 2, []seasonOutcome{{}, {}}, nil, original).NoData)
}

func TestTrialSeedSpreads(t *testing.T) {
	seen := make(map[int64]bool)
	for i := 0; i < 1000; i++ {
		s := trialSeed(42, i)
		assert.False(t, seen[s])
		seen[s] = true
	}
	assert.NotEqual(t, trialSeed(1, 0), trialSeed(2, 0))
}

func resultIDs(rows []PlayerResult) []int {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
