// Package random provides the injectable randomness used for XP awards,
// giveaway draws and mini-game selection.
package random

import (
	"math/rand/v2"
	"sync"
)

// Source returns a pseudo-random integer in [0, n). n must be > 0.
type Source interface {
	IntN(n int) int
}

// Global draws from the math/rand/v2 top-level generator, which is safe for
// concurrent use.
type Global struct{}

// IntN implements Source.
func (Global) IntN(n int) int {
	return rand.IntN(n)
}

// Seeded is a deterministic Source for tests and scenarios.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded creates a deterministic source from two seed words.
func NewSeeded(seed1, seed2 uint64) *Seeded {
	return &Seeded{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// IntN implements Source.
func (s *Seeded) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Between returns a value in [lo, hi]. If hi <= lo it returns lo.
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// Fixed always returns the same index, clamped to n-1. Useful when a test
// needs a specific draw.
type Fixed int

// IntN implements Source.
func (f Fixed) IntN(n int) int {
	v := int(f)
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}
