package game

import (
	"math"
	"math/rand"
)

// Game results from the first player's point of view.
const (
	Loss = 0.0
	Draw = 0.5
	Win  = 1.0
)

// Model holds the draw-rate parameters of the game outcome model. The draw
// probability is DrawMax for equal ratings, decays exponentially with the
// rating gap over DrawScale, and never drops below DrawMin.
type Model struct {
	DrawMax   float64 `json:"draw_max" mapstructure:"draw_max"`
	DrawMin   float64 `json:"draw_min" mapstructure:"draw_min"`
	DrawScale float64 `json:"draw_scale" mapstructure:"draw_scale"`
}

// DefaultModel is calibrated for classical games between top players.
var DefaultModel = Model{DrawMax: 0.55, DrawMin: 0.15, DrawScale: 400}

// OrDefault returns DefaultModel when m is the zero value.
func (m Model) OrDefault() Model {
	if m == (Model{}) {
		return DefaultModel
	}
	return m
}

// ExpectedScore returns the Elo expected score of a rated ra against rb.
func ExpectedScore(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -(ra-rb)/400.0))
}

// Probabilities returns win, draw and loss probabilities for a player rated
// ra against rb. Rounding error is absorbed into the loss bucket so the three
// never sum past one.
func (m Model) Probabilities(ra, rb float64) (pWin, pDraw, pLoss float64) {
	scale := m.DrawScale
	if scale <= 0 {
		scale = DefaultModel.DrawScale
	}
	pDraw = math.Max(m.DrawMin, m.DrawMax*math.Exp(-math.Abs(ra-rb)/scale))
	pDraw = clamp(pDraw, 0, 1)
	pWin = clamp(ExpectedScore(ra, rb)-pDraw/2, 0, 1)
	if pWin+pDraw > 1 {
		pDraw = 1 - pWin
	}
	pLoss = math.Max(0, 1-pWin-pDraw)
	return pWin, pDraw, pLoss
}

// Play draws a single game result for ra against rb: Win, Draw or Loss.
func (m Model) Play(rng *rand.Rand, ra, rb float64) float64 {
	pWin, pDraw, _ := m.Probabilities(ra, rb)
	u := rng.Float64()
	switch {
	case u < pWin:
		return Win
	case u < pWin+pDraw:
		return Draw
	default:
		return Loss
	}
}

// UpdateRatings applies a zero-sum Elo adjustment after a game in which the
// first player scored resultA.
func UpdateRatings(ra, rb, resultA, kFactor float64) (float64, float64) {
	delta := kFactor * (resultA - ExpectedScore(ra, rb))
	return ra + delta, rb - delta
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
