// Package rng provides the single seeded random source used by every
// randomized decision in the fuzzing core. The spec makes no determinism
// guarantee across runs, but requires that a fixed seed reproduce the
// entire trace, so every caller goes through one *Source instance instead
// of reaching for the global math/rand functions.
package rng

import (
	"math"
	"math/rand"
)

// Source wraps a math/rand.Rand with the three primitives the core needs:
// uniform integers, uniform reals on [0,1), and Beta(a,b) samples for
// Thompson Sampling.
type Source struct {
	r *rand.Rand
}

// New seeds a Source from seed. The same seed always produces the same
// sequence of draws.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// UniformU32 returns a value in [0, n). Panics if n <= 0, matching
// math/rand.Intn's contract.
func (s *Source) UniformU32(n uint32) uint32 {
	if n == 0 {
		panic("rng: UniformU32(0)")
	}
	return uint32(s.r.Int63n(int64(n)))
}

// UniformReal returns a value in [0, 1).
func (s *Source) UniformReal() float64 {
	return s.r.Float64()
}

// Beta draws from a Beta(a, b) distribution via two independent Gamma
// draws, the standard construction: X/(X+Y) where X~Gamma(a,1), Y~Gamma(b,1).
func (s *Source) Beta(a, b float64) float64 {
	x := s.gamma(a)
	y := s.gamma(b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// gamma draws from Gamma(shape, 1) using Marsaglia-Tsang for shape >= 1,
// and a boost transform for shape < 1.
func (s *Source) gamma(shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := s.UniformReal()
		return s.gamma(shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = s.r.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.UniformReal()
		if u < 1-0.0331*(x*x)*(x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Intn is a convenience wrapper matching math/rand's naming, used by
// callers that need [0,n) for slice indexing.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("rng: Intn(<=0)")
	}
	return s.r.Intn(n)
}

// Bool returns a fair coin flip.
func (s *Source) Bool() bool {
	return s.r.Intn(2) == 1
}
