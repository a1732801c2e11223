package tournament

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/candidates-sim/internal/game"
	"github.com/stitts-dev/candidates-sim/internal/models"
)

func gradientField(n int) []*models.Player {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{ID: i + 1, Name: "P", Elo: 2850 - float64(i)*5, InitialRank: i + 1}
	}
	return models.Pointers(players)
}

func testEnv(seed int64) Env {
	return Env{Rng: rand.New(rand.NewSource(seed)), Model: game.DefaultModel}
}

func assertUnique(t *testing.T, standings []*models.Player) {
	t.Helper()
	seen := make(map[int]bool, len(standings))
	for _, p := range standings {
		assert.False(t, seen[p.ID], "player %d listed twice", p.ID)
		seen[p.ID] = true
	}
}

func TestRegistry_DefaultTypes(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{TypeCircuit, TypeSwiss, TypeKnockout}, r.Types())
	assert.False(t, r.Has(TypeRating))

	_, err := r.New("blitz_marathon", gradientField(4), nil, testEnv(1))
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestRegistry_Validate(t *testing.T) {
	r := DefaultRegistry()
	alloc := stubAllocator{}

	valid := &models.QualificationConfig{
		TargetCandidates: 8,
		Slots: []models.TournamentSlot{
			{TournamentType: TypeSwiss, MaxSpots: 2, Strategy: alloc, Params: map[string]any{"rounds": 9}},
			{TournamentType: TypeRating, MaxSpots: 8, Strategy: alloc},
		},
	}
	require.NoError(t, r.Validate(valid))

	unknown := &models.QualificationConfig{
		TargetCandidates: 8,
		Slots:            []models.TournamentSlot{{TournamentType: "candidates_lottery", MaxSpots: 1, Strategy: alloc}},
	}
	assert.ErrorIs(t, r.Validate(unknown), ErrUnknownType)

	badParams := &models.QualificationConfig{
		TargetCandidates: 8,
		Slots: []models.TournamentSlot{
			{TournamentType: TypeKnockout, MaxSpots: 3, Strategy: alloc, Params: map[string]any{"games_per_match": 0}},
		},
	}
	assert.ErrorIs(t, r.Validate(badParams), ErrInvalidParams)

	unusedParam := &models.QualificationConfig{
		TargetCandidates: 8,
		Slots: []models.TournamentSlot{
			{TournamentType: TypeKnockout, MaxSpots: 3, Strategy: alloc, Params: map[string]any{"colour_rule": "strict"}},
		},
	}
	assert.ErrorIs(t, r.Validate(unusedParam), ErrInvalidParams)

	noTarget := &models.QualificationConfig{}
	assert.ErrorIs(t, r.Validate(noTarget), models.ErrInvalidConfig)
}

func TestDegenerateFieldsReturnEmptyStandings(t *testing.T) {
	env := testEnv(3)
	for _, field := range [][]*models.Player{nil, gradientField(1)} {
		assert.Empty(t, NewKnockout(field, DefaultKnockoutOptions(), env).Standings(0))
		assert.Empty(t, NewSwiss(field, DefaultSwissOptions(), env).Standings(0))
		assert.Empty(t, NewCircuit(field, DefaultCircuitOptions(), env).Standings(0))
	}
}

func TestKnockout_StandingsCoverField(t *testing.T) {
	field := gradientField(150)
	opts := DefaultKnockoutOptions()
	k := NewKnockout(field, opts, testEnv(42))

	standings := k.Standings(0)
	require.Len(t, standings, 128)
	assertUnique(t, standings)

	top := NewKnockout(field, opts, testEnv(42)).Standings(20)
	assert.Len(t, top, 20)
}

func TestKnockout_OddFieldGivesBye(t *testing.T) {
	field := gradientField(5)
	opts := DefaultKnockoutOptions()
	opts.FieldSize = 0
	standings := NewKnockout(field, opts, testEnv(8)).Standings(0)
	assert.Len(t, standings, 5)
	assertUnique(t, standings)
}

func TestKnockout_NoRatingChangeByDefault(t *testing.T) {
	field := gradientField(16)
	before := make(map[int]float64)
	for _, p := range field {
		before[p.ID] = p.Elo
	}
	NewKnockout(field, DefaultKnockoutOptions(), testEnv(4)).Standings(0)
	for _, p := range field {
		assert.Equal(t, before[p.ID], p.Elo)
	}
}

func TestKnockout_DominantPlayerWins(t *testing.T) {
	players := []models.Player{
		{ID: 1, Elo: 4000}, {ID: 2, Elo: 1000}, {ID: 3, Elo: 1000}, {ID: 4, Elo: 1000},
	}
	opts := DefaultKnockoutOptions()
	opts.GamesPerMatch = 4
	wins := 0
	for seed := int64(0); seed < 50; seed++ {
		standings := NewKnockout(models.Pointers(models.ClonePool(players)), opts, testEnv(seed)).Standings(0)
		if standings[0].ID == 1 {
			wins++
		}
	}
	assert.GreaterOrEqual(t, wins, 45)
}

func TestSwiss_OrderedByRatingTiebreak(t *testing.T) {
	field := gradientField(40)
	opts := DefaultSwissOptions()
	opts.FieldSize = 0
	opts.KFactor = 0
	standings := NewSwiss(field, opts, testEnv(10)).Standings(0)

	require.Len(t, standings, 40)
	assertUnique(t, standings)
}

func TestSwiss_UpdatesLiveRatingsZeroSum(t *testing.T) {
	field := gradientField(20)
	total := 0.0
	for _, p := range field {
		total += p.Elo
	}
	opts := DefaultSwissOptions()
	opts.FieldSize = 0
	NewSwiss(field, opts, testEnv(6)).Standings(0)

	after := 0.0
	changed := false
	for i, p := range field {
		after += p.Elo
		if p.Elo != 2850-float64(i)*5 {
			changed = true
		}
	}
	assert.True(t, changed)
	assert.InDelta(t, total, after, 1e-6)
}

func TestPlaySwiss_ScoresAndByes(t *testing.T) {
	field := gradientField(7)
	table := playSwiss(testEnv(2), field, 5, 0)
	require.Len(t, table, 7)

	for i := 1; i < len(table); i++ {
		prev, row := table[i-1], table[i]
		assert.True(t, prev.score > row.score ||
			(prev.score == row.score && prev.player.Elo >= row.player.Elo))
	}

	// one round over an odd field: three games plus a single bye
	first := playSwiss(testEnv(2), gradientField(7), 1, 0)
	total := 0.0
	for _, row := range first {
		total += row.score
	}
	assert.InDelta(t, 3+ByeScore, total, 1e-9)
}

func TestCircuit_PointsAndStandings(t *testing.T) {
	field := gradientField(120)
	c := NewCircuit(field, DefaultCircuitOptions(), testEnv(99))
	standings := c.Standings(0)

	require.NotEmpty(t, standings)
	assertUnique(t, standings)
	// at most eight paid places per event
	assert.LessOrEqual(t, len(standings), 8*len(DefaultCircuitEvents()))
}

func TestCircuit_SingleEventPointsTable(t *testing.T) {
	field := gradientField(4)
	opts := DefaultCircuitOptions()
	opts.Events = []CircuitEvent{{Name: "Test Open", FieldSize: 4, Rounds: 3, AverageRating: 2700, Weight: 0.5}}
	c := NewCircuit(field, opts, testEnv(12))

	points := c.Points()
	// top half of four finishers is paid: 11 and 8 base points, k = 2, w = 0.5
	require.Len(t, points, 2)
	var values []float64
	for _, v := range points {
		values = append(values, v)
	}
	assert.ElementsMatch(t, []float64{11, 8}, values)
}

func TestCircuitParamsDecode(t *testing.T) {
	params := map[string]any{
		"events": []any{
			map[string]any{"name": "Open A", "field_size": 20, "rounds": "7", "average_rating": 2600, "weight": 1},
		},
		"base_points": []any{5, 3},
	}
	tour, err := NewCircuitFromParams(gradientField(30), params, testEnv(1))
	require.NoError(t, err)

	c := tour.(*Circuit)
	require.Len(t, c.opts.Events, 1)
	assert.Equal(t, 7, c.opts.Events[0].Rounds)
	assert.Equal(t, []float64{5, 3}, c.opts.BasePoints)

	standings := c.Standings(0)
	assert.LessOrEqual(t, len(standings), 2)
}

func TestCircuitParamsDecode_WeightDefaultsToOne(t *testing.T) {
	params := map[string]any{
		"events": []any{
			map[string]any{"name": "Open B", "field_size": 20, "rounds": 7, "average_rating": 2700},
		},
	}
	tour, err := NewCircuitFromParams(gradientField(30), params, testEnv(4))
	require.NoError(t, err)

	c := tour.(*Circuit)
	assert.Equal(t, 1.0, c.opts.Events[0].Weight)
	// ten of the twenty finishers are in the top half, the table pays eight
	standings := c.Standings(0)
	assert.Len(t, standings, 8)
	assertUnique(t, standings)
}

func TestCircuitParamsDecode_RejectsBadEvents(t *testing.T) {
	tests := []struct {
		name  string
		event map[string]any
	}{
		{"negative weight", map[string]any{"name": "X", "rounds": 5, "average_rating": 2700, "weight": -1}},
		{"no average rating", map[string]any{"name": "X", "rounds": 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCircuitFromParams(nil, map[string]any{"events": []any{tt.event}}, testEnv(1))
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestEventMultiplier(t *testing.T) {
	assert.Equal(t, 0.0, EventMultiplier(2400))
	assert.Equal(t, 0.0, EventMultiplier(2500))
	assert.InDelta(t, 2.5, EventMultiplier(2750), 1e-12)
}

type stubAllocator struct{}

func (stubAllocator) Allocate(standings []*models.Player, maxSpots int, _ map[int]struct{}) []*models.Player {
	return truncate(standings, maxSpots)
}
