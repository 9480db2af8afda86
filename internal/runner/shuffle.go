package runner

import "math/rand"

// PartialShuffle applies a partial Fisher-Yates shuffle to n ordinals
// (0..n-1): a uniformly-selected 15-20% subset of positions is shuffled
// among themselves, leaving the rest in place, per §4.7's "partial
// Fisher-Yates shuffle to 15-20% of the ordinals" initial ordering
// policy. Strict sequential order is a detection signature; a full
// shuffle would destroy analytics ordering, so only a minority of
// positions move.
func PartialShuffle(rng *rand.Rand, n int) []int {
	ordinals := make([]int, n)
	for i := range ordinals {
		ordinals[i] = i
	}
	if n < 2 {
		return ordinals
	}

	fraction := 0.15 + rng.Float64()*0.05 // 15-20%
	k := int(float64(n) * fraction)
	if k < 2 {
		k = 2
		if k > n {
			k = n
		}
	}

	selected := rng.Perm(n)[:k]

	// Fisher-Yates over just the selected positions, swapping values held
	// at those positions (not the positions themselves) so the shuffle is
	// confined to the chosen 15-20% subset.
	for i := len(selected) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		pi, pj := selected[i], selected[j]
		ordinals[pi], ordinals[pj] = ordinals[pj], ordinals[pi]
	}

	return ordinals
}
