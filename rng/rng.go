// Package rng provides the random source used by all samplers. It wraps a
// 64-bit Mersenne twister behind a background goroutine that pre-generates
// batches of numbers, and satisfies golang.org/x/exp/rand.Source so the
// generator can be plugged directly into gonum's distuv/distmv samplers.
package rng

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator uses a goroutine to populate batches of random numbers drawn
// from a seeded Mersenne twister. Close stops the goroutine when the
// generator is no longer needed.
type Generator struct {
	ch        chan uint64
	done      chan struct{}
	closeOnce sync.Once
	seed      int64
}

// NewGenerator starts a new background PRNG based on the given seed.
func NewGenerator(seed int64) (*Generator, error) {
	numChan := make(chan uint64, 1024)
	done := make(chan struct{})

	go func() {
		r := mt19937.New()
		r.Seed(seed)
		for {
			select {
			case numChan <- r.Uint64():
			case <-done:
				return
			}
		}
	}()

	g := &Generator{
		ch:   numChan,
		done: done,
		seed: seed,
	}

	return g, nil
}

// Close stops the background goroutine. Already-buffered values can still be
// drained but drawing past them blocks, so close only after sampling is
// finished. Safe to call more than once.
func (g *Generator) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

// Spawn returns an independent generator for the i'th parallel chain. The
// derived seed is a deterministic function of the parent seed and i, so a
// run is reproducible no matter how chains are scheduled.
func (g *Generator) Spawn(i int) (*Generator, error) {
	if i < 0 {
		return nil, errors.Errorf("Invalid spawn index %d - must be >= 0", i)
	}
	const mix = 0x9e3779b97f4a7c15 // golden-ratio increment, same trick as splitmix64
	return NewGenerator(g.seed ^ int64(uint64(i+1)*mix))
}

// StartSeed returns the seed the generator was started with.
func (g *Generator) StartSeed() int64 {
	return g.seed
}

// Uint64 returns the next raw value from the twister. Together with Seed this
// satisfies x/exp/rand.Source.
func (g *Generator) Uint64() uint64 {
	return <-g.ch
}

// Seed is required by x/exp/rand.Source but reseeding a running background
// generator is not supported: create a new Generator instead.
func (g *Generator) Seed(seed uint64) {
	panic("rng: a running Generator can not be reseeded - create a new one")
}

// Int63 provides the same interface as Go's math/rand, but with pre-generation.
func (g *Generator) Int63() int64 {
	return int64(g.Uint64() >> 1)
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Intn is a convenience wrapper around Int63n for int arguments.
func (g *Generator) Intn(n int) int {
	return int(g.Int63n(int64(n)))
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}
