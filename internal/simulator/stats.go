package simulator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/candidates-sim/internal/models"
)

// OutlierCount tallies qualifiers whose pre-season rating was below Threshold.
type OutlierCount struct {
	Threshold float64 `json:"threshold"`
	// Qualifiers is the number of qualifying spots taken by such players
	// across all valid seasons.
	Qualifiers int `json:"qualifiers"`
	// Seasons is the number of valid seasons with at least one such qualifier.
	Seasons int `json:"seasons"`
}

// Quantiles summarise the distribution of the per-season mean live rating.
type Quantiles struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// PlayerResult is one pool player's qualification probability.
type PlayerResult struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Elo         float64 `json:"elo"`
	InitialRank int     `json:"initial_rank"`
	Probability float64 `json:"probability"`
}

// SimulationStats aggregates a Monte Carlo run over its valid seasons (those
// with at least one qualifier). When no season was valid NoData is set and
// every aggregate is left at its zero value.
type SimulationStats struct {
	NoData       bool  `json:"no_data"`
	Seed         int64 `json:"seed"`
	TotalSeasons int   `json:"total_seasons"`
	ValidSeasons int   `json:"valid_seasons"`

	// QualificationProbs holds count/validSeasons for every pool player.
	QualificationProbs map[int]float64 `json:"qualification_probs"`

	MeanAvgEloOriginal float64 `json:"mean_avg_elo_original"`
	VarAvgEloOriginal  float64 `json:"var_avg_elo_original"`
	MeanAvgEloLive     float64 `json:"mean_avg_elo_live"`
	VarAvgEloLive      float64 `json:"var_avg_elo_live"`

	Outliers        []OutlierCount `json:"outliers"`
	MinQualifierElo float64        `json:"min_qualifier_elo"`

	// RankCorrelation is the Pearson correlation between initial rank and
	// qualification probability. Strongly negative means merit wins.
	RankCorrelation float64 `json:"rank_correlation"`
	// TopRatedCaptureRate is the mean probability of the TargetCandidates
	// highest pre-season rated players.
	TopRatedCaptureRate float64   `json:"top_rated_capture_rate"`
	LiveEloQuantiles    Quantiles `json:"live_elo_quantiles"`

	Players []PlayerResult `json:"players"`
}

// StdDevAvgEloOriginal is the standard deviation of the per-season mean
// pre-season rating.
func (s *SimulationStats) StdDevAvgEloOriginal() float64 {
	return math.Sqrt(math.Max(0, s.VarAvgEloOriginal))
}

// StdDevAvgEloLive is the standard deviation of the per-season mean live rating.
func (s *SimulationStats) StdDevAvgEloLive() float64 {
	return math.Sqrt(math.Max(0, s.VarAvgEloLive))
}

// Probability returns the qualification probability of a player id.
func (s *SimulationStats) Probability(id int) float64 {
	return s.QualificationProbs[id]
}

// TopPlayers returns the n players most likely to qualify.
func (s *SimulationStats) TopPlayers(n int) []PlayerResult {
	if n > len(s.Players) || n <= 0 {
		n = len(s.Players)
	}
	return s.Players[:n]
}

func emptyStats() *SimulationStats {
	return &SimulationStats{NoData: true}
}

func aggregate(players []models.Player, target int, outcomes []seasonOutcome, thresholds []float64, original map[int]float64) *SimulationStats {
	counts := make(map[int]int, len(players))
	outliers := make([]OutlierCount, len(thresholds))
	for i, t := range thresholds {
		outliers[i].Threshold = t
	}

	var (
		valid              int
		sumOrig, sumOrigSq float64
		sumLive, sumLiveSq float64
		minElo             = math.Inf(1)
		liveMeans          []float64
	)
	for _, o := range outcomes {
		if !o.valid() {
			continue
		}
		valid++
		sumOrig += o.avgOriginal
		sumOrigSq += o.avgOriginal * o.avgOriginal
		sumLive += o.avgLive
		sumLiveSq += o.avgLive * o.avgLive
		liveMeans = append(liveMeans, o.avgLive)

		below := make([]bool, len(thresholds))
		for _, id := range o.qualifierIDs {
			counts[id]++
			elo := original[id]
			if elo < minElo {
				minElo = elo
			}
			for i, t := range thresholds {
				if elo < t {
					outliers[i].Qualifiers++
					below[i] = true
				}
			}
		}
		for i, b := range below {
			if b {
				outliers[i].Seasons++
			}
		}
	}

	if valid == 0 {
		return emptyStats()
	}

	n := float64(valid)
	stats := &SimulationStats{
		ValidSeasons:       valid,
		QualificationProbs: make(map[int]float64, len(players)),
		MeanAvgEloOriginal: sumOrig / n,
		MeanAvgEloLive:     sumLive / n,
		Outliers:           outliers,
		MinQualifierElo:    minElo,
	}
	stats.VarAvgEloOriginal = math.Max(0, sumOrigSq/n-stats.MeanAvgEloOriginal*stats.MeanAvgEloOriginal)
	stats.VarAvgEloLive = math.Max(0, sumLiveSq/n-stats.MeanAvgEloLive*stats.MeanAvgEloLive)

	stats.Players = make([]PlayerResult, len(players))
	for i, p := range players {
		prob := float64(counts[p.ID]) / n
		stats.QualificationProbs[p.ID] = prob
		stats.Players[i] = PlayerResult{
			ID:          p.ID,
			Name:        p.Name,
			Elo:         p.Elo,
			InitialRank: p.InitialRank,
			Probability: prob,
		}
	}

	stats.RankCorrelation = rankCorrelation(stats.Players)
	stats.TopRatedCaptureRate = topRatedCapture(stats.Players, target)
	stats.LiveEloQuantiles = quantiles(liveMeans)

	sort.SliceStable(stats.Players, func(i, j int) bool {
		a, b := stats.Players[i], stats.Players[j]
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		return a.Elo > b.Elo
	})
	return stats
}

func rankCorrelation(rows []PlayerResult) float64 {
	if len(rows) < 2 {
		return 0
	}
	ranks := make([]float64, len(rows))
	probs := make([]float64, len(rows))
	for i, r := range rows {
		ranks[i] = float64(r.InitialRank)
		probs[i] = r.Probability
	}
	c := stat.Correlation(ranks, probs, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

func topRatedCapture(rows []PlayerResult, target int) float64 {
	if target <= 0 || len(rows) == 0 {
		return 0
	}
	byElo := make([]PlayerResult, len(rows))
	copy(byElo, rows)
	sort.SliceStable(byElo, func(i, j int) bool { return byElo[i].Elo > byElo[j].Elo })
	if target > len(byElo) {
		target = len(byElo)
	}
	sum := 0.0
	for _, r := range byElo[:target] {
		sum += r.Probability
	}
	return sum / float64(target)
}

func quantiles(values []float64) Quantiles {
	if len(values) == 0 {
		return Quantiles{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return Quantiles{
		P10: stat.Quantile(0.1, stat.Empirical, sorted, nil),
		P50: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90: stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
}
