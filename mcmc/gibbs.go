package mcmc

import (
	"github.com/pkg/errors"

	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// State is the read-only view of the current model state handed to a
// full-conditional function.
type State interface {
	// Value returns a copy of the named node's current value.
	Value(name string) ([]float64, error)

	// LogProb is the model log probability at the current state.
	LogProb() (float64, error)
}

// FullConditional draws new values for a Gibbs kernel's bound parameters
// from their full conditional distribution, given a random generator and the
// current model state. The returned slice is the flattened concatenation of
// the bound parameters in binding order.
type FullConditional func(gen *rng.Generator, s State) ([]float64, error)

// Gibbs is a custom kernel: the user supplies the full-conditional sampler
// for the parameters it is bound to.
type Gibbs struct {
	names []string
	fn    FullConditional

	post *posterior
	gen  *rng.Generator
	m    *graph.Model
}

// NewGibbs creates a Gibbs kernel with a user-supplied full conditional.
func NewGibbs(fn FullConditional, names ...string) *Gibbs {
	return &Gibbs{names: names, fn: fn}
}

// Bound implements Kernel.
func (k *Gibbs) Bound() []string { return k.names }

// Clone implements Kernel.
func (k *Gibbs) Clone() Kernel {
	return &Gibbs{names: k.names, fn: k.fn}
}

// Init implements Kernel.
func (k *Gibbs) Init(m *graph.Model, gen *rng.Generator) error {
	if k.fn == nil {
		return errors.Errorf("Gibbs kernel has no full-conditional function")
	}

	post, err := newPosterior(m, k.names)
	if err != nil {
		return errors.Wrap(err, "Gibbs kernel could not bind")
	}

	k.post = post
	k.gen = gen
	k.m = m

	return nil
}

// Step implements Kernel. Gibbs transitions are exact draws, so tuning is
// ignored.
func (k *Gibbs) Step(tuning bool) error {
	vals, err := k.fn(k.gen, modelState{k.m})
	if err != nil {
		return errors.Wrap(err, "Full-conditional sampler failed")
	}
	if len(vals) != k.post.Dim() {
		return errors.Errorf("Full conditional returned %d values, want %d", len(vals), k.post.Dim())
	}

	return k.post.SetPosition(vals)
}

// EndEpoch implements Kernel.
func (k *Gibbs) EndEpoch(t EpochType) error { return nil }

// modelState adapts a model to the State interface.
type modelState struct {
	m *graph.Model
}

func (s modelState) Value(name string) ([]float64, error) {
	return s.m.Value(name)
}

func (s modelState) LogProb() (float64, error) {
	return s.m.LogProb()
}
