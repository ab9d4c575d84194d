package selection

import (
	"math/rand"
	"time"
)

// RNG is the seedable random source used for candidate sampling. Each game
// session owns its own RNG; it is not safe for concurrent use.
type RNG struct {
	r     *rand.Rand
	draws int
}

// NewRNG creates an RNG. A nil seed gives a time-seeded, non-reproducible source.
func NewRNG(seed *int64) *RNG {
	g := &RNG{}
	g.Reseed(seed)
	return g
}

// Reseed resets the source. Reseeding with the same value replays the same draws.
func (g *RNG) Reseed(seed *int64) {
	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	g.r = rand.New(rand.NewSource(s))
	g.draws = 0
}

// Float64 returns a value in [0, 1).
func (g *RNG) Float64() float64 {
	g.draws++
	return g.r.Float64()
}

// Draws is the number of values consumed since the last reseed.
func (g *RNG) Draws() int {
	return g.draws
}

// WeightedChoice picks an index with probability proportional to its weight.
// Non-positive weights are never picked unless all weights are non-positive,
// in which case the choice is uniform.
func (g *RNG) WeightedChoice(weights []float64) int {
	if len(weights) == 0 {
		return -1
	}
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return int(g.Float64() * float64(len(weights)))
	}

	x := g.Float64() * total
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		x -= w
		if x < 0 {
			return i
		}
	}
	// floating-point slack lands on the last positive entry
	return last
}
