// Package shuffle derives reproducible orderings from a per-attempt seed.
package shuffle

import (
	"math/bits"
	"math/rand/v2"
)

// Generator is a seeded PCG stream. The same seed always yields the same
// sequence of draws.
type Generator struct {
	src *rand.PCG
}

// New returns a Generator for seed. The seed is expanded through splitmix64
// so that neighbouring seeds (attempt seeds, seed+position) start from
// unrelated states.
func New(seed int64) *Generator {
	s := uint64(seed)
	hi := splitmix64(&s)
	lo := splitmix64(&s)
	return &Generator{src: rand.NewPCG(hi, lo)}
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Uint64 returns the next raw value.
func (g *Generator) Uint64() uint64 {
	return g.src.Uint64()
}

// Intn returns a uniform value in [0, n). It panics if n <= 0.
//
// Lemire's multiply-shift with rejection keeps the draw unbiased and stable
// across Go releases, which rand.Rand.IntN does not promise.
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("shuffle: invalid argument to Intn")
	}
	bound := uint64(n)
	hi, lo := bits.Mul64(g.Uint64(), bound)
	if lo < bound {
		threshold := -bound % bound
		for lo < threshold {
			hi, lo = bits.Mul64(g.Uint64(), bound)
		}
	}
	return int(hi)
}

// Shuffle permutes n elements in place through swap, Fisher–Yates style,
// walking from the last index down to 1.
func (g *Generator) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := g.Intn(i + 1)
		swap(i, j)
	}
}

// Permute returns a permutation of [0, n) derived from seed.
func Permute(seed int64, n int) []int {
	if n <= 0 {
		return []int{}
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	New(seed).Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}

// NewSeed returns a fresh random seed for a new attempt.
func NewSeed() int64 {
	return rand.Int64()
}
