package mcmc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// RWMetropolis is an adaptive random-walk Metropolis kernel: a spherical
// Gaussian proposal whose scale is tuned toward the classic 0.234 acceptance
// rate during warmup.
type RWMetropolis struct {
	names  []string
	Scale  float64 // Proposal standard deviation
	Target float64 // Target acceptance rate while tuning

	post  *posterior
	gen   *rng.Generator
	x     []float64
	prop  []float64
	steps int64
}

// NewRWMetropolis creates a random-walk kernel for the named parameters.
func NewRWMetropolis(names ...string) *RWMetropolis {
	return &RWMetropolis{
		names:  names,
		Scale:  0.5,
		Target: 0.234,
	}
}

// Bound implements Kernel.
func (k *RWMetropolis) Bound() []string { return k.names }

// Clone implements Kernel.
func (k *RWMetropolis) Clone() Kernel {
	return &RWMetropolis{names: k.names, Scale: k.Scale, Target: k.Target}
}

// Init implements Kernel.
func (k *RWMetropolis) Init(m *graph.Model, gen *rng.Generator) error {
	if k.Scale <= 0 {
		return errors.Errorf("Proposal scale %f must be > 0", k.Scale)
	}

	post, err := newPosterior(m, k.names)
	if err != nil {
		return errors.Wrap(err, "Random-walk kernel could not bind")
	}

	k.post = post
	k.gen = gen
	k.x = post.Position(nil)
	k.prop = make([]float64, post.Dim())
	k.steps = 0

	return nil
}

// Step implements Kernel. The current log probability is recomputed every
// step because other kernels may have moved their own parameters in the
// shared model since our last transition.
func (k *RWMetropolis) Step(tuning bool) error {
	norm := distuv.Normal{Mu: 0, Sigma: k.Scale, Src: k.gen}
	for i, v := range k.x {
		k.prop[i] = v + norm.Rand()
	}

	lpX := k.post.LogProb(k.x)
	lp := k.post.LogProb(k.prop)
	accProb := math.Exp(lp - lpX)
	if accProb > 1 {
		accProb = 1
	}

	if k.gen.Float64() < accProb {
		copy(k.x, k.prop)
	}
	if err := k.post.SetPosition(k.x); err != nil {
		return errors.Wrap(err, "Random-walk kernel could not restore position")
	}

	if tuning {
		// Robbins-Monro on the log scale with a decaying gain
		k.steps++
		gain := 1.0 / math.Sqrt(float64(k.steps))
		k.Scale *= math.Exp(gain * (accProb - k.Target))
	}

	return nil
}

// EndEpoch implements Kernel: nothing to fold, adaptation is continuous.
func (k *RWMetropolis) EndEpoch(t EpochType) error { return nil }
