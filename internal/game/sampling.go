package game

import "math/rand"

// WeightFunc returns the relative selection weight of an item.
type WeightFunc[T any] func(T) float64

// WeightedSample picks k distinct items from pool without replacement. With a
// nil weight function the draw is uniform; otherwise each round picks an item
// with probability proportional to its weight among those left. If every
// remaining weight is zero the round falls back to a uniform pick.
// k is capped at len(pool).
func WeightedSample[T any](rng *rand.Rand, pool []T, k int, weight WeightFunc[T]) []T {
	if k > len(pool) {
		k = len(pool)
	}
	if k <= 0 {
		return []T{}
	}

	if weight == nil {
		chosen := make([]T, 0, k)
		for _, idx := range rng.Perm(len(pool))[:k] {
			chosen = append(chosen, pool[idx])
		}
		return chosen
	}

	available := make([]T, len(pool))
	copy(available, pool)
	weights := make([]float64, len(pool))
	for i, item := range pool {
		w := weight(item)
		if w < 0 {
			w = 0
		}
		weights[i] = w
	}

	chosen := make([]T, 0, k)
	for len(chosen) < k {
		total := 0.0
		for _, w := range weights {
			total += w
		}

		idx := -1
		if total > 0 {
			x := rng.Float64()
			cum := 0.0
			for i, w := range weights {
				cum += w / total
				if x < cum {
					idx = i
					break
				}
			}
			// cumulative rounding can leave x just above the last bucket
			if idx < 0 {
				idx = lastPositive(weights)
			}
		} else {
			idx = rng.Intn(len(available))
		}

		chosen = append(chosen, available[idx])
		available = append(available[:idx], available[idx+1:]...)
		weights = append(weights[:idx], weights[idx+1:]...)
	}
	return chosen
}

func lastPositive(weights []float64) int {
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}

// StrengthWeight biases field selection toward stronger players: every player
// gets weight 1, plus 1 for every scale points above pivot.
func StrengthWeight(pivot, scale float64) func(elo float64) float64 {
	if scale <= 0 {
		scale = 200
	}
	return func(elo float64) float64 {
		above := elo - pivot
		if above < 0 {
			above = 0
		}
		return 1.0 + above/scale
	}
}
