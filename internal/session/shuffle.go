package session

import "math/rand"

// Permutation returns a random permutation of [0..n-1] produced by an
// unbiased Fisher-Yates shuffle. The session regenerates it on every
// shuffle-enable transition and discards it on disable.
func Permutation(n int, rng *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}
