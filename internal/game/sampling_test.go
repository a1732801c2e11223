package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPool(n int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	return pool
}

func assertDistinctSubset(t *testing.T, pool, sample []int) {
	t.Helper()
	inPool := make(map[int]bool, len(pool))
	for _, v := range pool {
		inPool[v] = true
	}
	seen := make(map[int]bool, len(sample))
	for _, v := range sample {
		assert.True(t, inPool[v], "%d not drawn from pool", v)
		assert.False(t, seen[v], "%d drawn twice", v)
		seen[v] = true
	}
}

func TestWeightedSample_ExactSizeDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := intPool(50)
	weight := func(v int) float64 { return float64(v + 1) }

	for _, k := range []int{0, 1, 10, 49, 50} {
		sample := WeightedSample(rng, pool, k, weight)
		require.Len(t, sample, k)
		assertDistinctSubset(t, pool, sample)

		uniform := WeightedSample[int](rng, pool, k, nil)
		require.Len(t, uniform, k)
		assertDistinctSubset(t, pool, uniform)
	}
}

func TestWeightedSample_KLargerThanPool(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	pool := intPool(5)
	sample := WeightedSample(rng, pool, 12, func(int) float64 { return 1 })
	assert.Len(t, sample, 5)
	assertDistinctSubset(t, pool, sample)
}

func TestWeightedSample_AllZeroWeightsFallsBackToUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	pool := intPool(20)
	sample := WeightedSample(rng, pool, 20, func(int) float64 { return 0 })
	assert.Len(t, sample, 20)
	assertDistinctSubset(t, pool, sample)
}

func TestWeightedSample_ZeroWeightPickedLast(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pool := intPool(4)
	// only item 3 carries weight until it is gone
	weight := func(v int) float64 {
		if v == 3 {
			return 1
		}
		return 0
	}
	for i := 0; i < 50; i++ {
		sample := WeightedSample(rng, pool, 1, weight)
		assert.Equal(t, []int{3}, sample)
	}
}

func TestWeightedSample_BiasTowardHeavyItems(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	pool := intPool(10)
	weight := func(v int) float64 {
		if v == 0 {
			return 100
		}
		return 1
	}
	hits := 0
	for i := 0; i < 1000; i++ {
		if WeightedSample(rng, pool, 1, weight)[0] == 0 {
			hits++
		}
	}
	assert.Greater(t, hits, 850)
}

func TestStrengthWeight(t *testing.T) {
	w := StrengthWeight(2600, 200)
	assert.Equal(t, 1.0, w(2500))
	assert.Equal(t, 1.0, w(2600))
	assert.Equal(t, 2.0, w(2800))
	assert.InDelta(t, 2.25, w(2850), 1e-12)
}
