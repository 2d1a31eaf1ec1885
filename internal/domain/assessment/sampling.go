package assessment

import "math/rand/v2"

// Sample picks up to n items uniformly at random without replacement.
// The input is not modified. When len(items) <= n every item is returned,
// in random order.
func Sample[T any](items []T, n int, rng *rand.Rand) []T {
	pool := make([]T, len(items))
	copy(pool, items)

	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return pool[:0]
	}

	// partial Fisher-Yates: the first n slots end up holding the sample
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
