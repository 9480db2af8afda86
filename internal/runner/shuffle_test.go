package runner

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartialShuffleIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ordinals := PartialShuffle(rng, 100)

	cp := append([]int(nil), ordinals...)
	sort.Ints(cp)
	for i, v := range cp {
		assert.Equal(t, i, v, "must remain a permutation of 0..n-1")
	}
}

func TestPartialShuffleMovesOnlyAMinority(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 200
	ordinals := PartialShuffle(rng, n)

	moved := 0
	for i, v := range ordinals {
		if i != v {
			moved++
		}
	}
	assert.Less(t, moved, n, "not every position should move")
	assert.Greater(t, moved, 0, "some positions should move")
}

func TestPartialShuffleSmallN(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.NotPanics(t, func() {
		PartialShuffle(rng, 1)
		PartialShuffle(rng, 0)
	})
}
