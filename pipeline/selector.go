// ABOUTME: Seedable random selection of per-iteration step counts and optional-step samples.
// ABOUTME: A fixed seed reproduces the exact same selections, which tests and reruns rely on.
package pipeline

import (
	"math/rand/v2"
)

// Selector decides how many steps an iteration runs and which optional steps fill the budget.
type Selector interface {
	// Between returns an integer in [lo, hi].
	Between(lo, hi int) int
	// Sample returns n distinct definitions from defs in arbitrary order.
	Sample(defs []StepDefinition, n int) []StepDefinition
}

// RandSelector is a Selector backed by a PCG generator.
type RandSelector struct {
	rng  *rand.Rand
	seed uint64
}

// NewRandSelector creates a selector seeded with seed.
func NewRandSelector(seed uint64) *RandSelector {
	return &RandSelector{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

// NewSeed returns a fresh seed for runs that do not pin one.
func NewSeed() uint64 {
	return rand.Uint64()
}

// Seed returns the seed the selector was created with.
func (s *RandSelector) Seed() uint64 {
	return s.seed
}

// Between returns a uniformly chosen integer in [lo, hi]. If hi <= lo it returns lo.
func (s *RandSelector) Between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// Sample returns min(n, len(defs)) distinct definitions in random order.
func (s *RandSelector) Sample(defs []StepDefinition, n int) []StepDefinition {
	if n <= 0 || len(defs) == 0 {
		return nil
	}
	if n > len(defs) {
		n = len(defs)
	}
	perm := s.rng.Perm(len(defs))
	out := make([]StepDefinition, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, defs[idx])
	}
	return out
}
