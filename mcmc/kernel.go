package mcmc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// A Kernel is a sampling transition rule bound to a subset of a model's free
// parameters. Kernels hold per-chain state: the engine clones one instance
// per chain and calls Init with that chain's model and generator.
type Kernel interface {
	// Bound names the free parameters this kernel advances.
	Bound() []string

	// Init binds the kernel to one chain's model and random source.
	Init(m *graph.Model, gen *rng.Generator) error

	// Step runs one transition, mutating the bound parameters in the model.
	// During warmup epochs tuning is true and the kernel may adapt.
	Step(tuning bool) error

	// EndEpoch is called once per chain at the end of every epoch, with the
	// epoch's type. Kernels typically fold adaptation state here.
	EndEpoch(t EpochType) error

	// Clone returns a fresh, un-initialized copy with the same configuration.
	Clone() Kernel
}

// posterior flattens a set of bound parameter nodes into a single position
// vector and exposes log probability and its numerical gradient over that
// vector. All gradient-based kernels share it.
type posterior struct {
	m     *graph.Model
	nodes []*graph.Node
	dim   int
	fdSet *fd.Settings
}

func newPosterior(m *graph.Model, names []string) (*posterior, error) {
	if len(names) < 1 {
		return nil, errors.Errorf("Kernel bound to no parameters")
	}

	free := make(map[string]*graph.Node)
	for _, n := range m.Params() {
		free[n.Name] = n
	}

	p := &posterior{
		m:     m,
		fdSet: &fd.Settings{Formula: fd.Central},
	}
	for _, name := range names {
		n, ok := free[name]
		if !ok {
			return nil, errors.Errorf("Model %s has no free parameter %s", m.Name, name)
		}
		p.nodes = append(p.nodes, n)
		p.dim += len(n.Val)
	}

	return p, nil
}

// Dim is the total flattened dimension across bound parameters.
func (p *posterior) Dim() int {
	return p.dim
}

// Position copies the current bound values into dst (allocating when nil).
func (p *posterior) Position(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, p.dim)
	}
	i := 0
	for _, n := range p.nodes {
		i += copy(dst[i:], n.Val)
	}
	return dst
}

// SetPosition writes x back into the bound nodes.
func (p *posterior) SetPosition(x []float64) error {
	if len(x) != p.dim {
		return errors.Errorf("Position has len %d, want %d", len(x), p.dim)
	}
	i := 0
	for _, n := range p.nodes {
		i += copy(n.Val, x[i:i+len(n.Val)])
	}
	return nil
}

// LogProb evaluates the model log probability at x. Evaluation errors and
// NaN map to -Inf: samplers treat both as zero-probability regions. Note the
// model is left at x (or a perturbation of it if called through Grad) - a
// kernel must SetPosition its accepted value before returning from Step.
func (p *posterior) LogProb(x []float64) float64 {
	if err := p.SetPosition(x); err != nil {
		return math.Inf(-1)
	}
	lp, err := p.m.LogProb()
	if err != nil || math.IsNaN(lp) {
		return math.Inf(-1)
	}
	return lp
}

// Grad fills dst with the central finite-difference gradient of LogProb at x.
func (p *posterior) Grad(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	fd.Gradient(dst, p.LogProb, x, p.fdSet)
	return dst
}

// Hessian fills the given square matrix (as dense rows) with central second
// differences of LogProb at x. Used by the IWLS kernel for its Fisher
// scoring step; dimension is expected to be small.
func (p *posterior) Hessian(dst [][]float64, x []float64) {
	d := len(x)
	const h = 1e-4

	f := p.LogProb
	f0 := f(x)

	xx := make([]float64, d)
	copy(xx, x)

	for i := 0; i < d; i++ {
		// Diagonal: (f(x+h) - 2 f(x) + f(x-h)) / h^2
		xx[i] = x[i] + h
		fp := f(xx)
		xx[i] = x[i] - h
		fm := f(xx)
		xx[i] = x[i]
		dst[i][i] = (fp - 2*f0 + fm) / (h * h)

		for j := i + 1; j < d; j++ {
			xx[i] = x[i] + h
			xx[j] = x[j] + h
			fpp := f(xx)
			xx[j] = x[j] - h
			fpm := f(xx)
			xx[i] = x[i] - h
			fmm := f(xx)
			xx[j] = x[j] + h
			fmp := f(xx)
			xx[i] = x[i]
			xx[j] = x[j]

			v := (fpp - fpm - fmp + fmm) / (4 * h * h)
			dst[i][j] = v
			dst[j][i] = v
		}
	}
}

// checkDisjoint verifies that no parameter name is claimed by two kernels and
// that together the kernels claim every free parameter of the model.
func checkDisjoint(m *graph.Model, kernels []Kernel) error {
	if len(kernels) < 1 {
		return errors.Errorf("At least one kernel required")
	}

	claimed := make(map[string]bool)
	for _, k := range kernels {
		for _, name := range k.Bound() {
			if claimed[name] {
				return errors.Errorf("Parameter %s is claimed by two kernels", name)
			}
			claimed[name] = true
		}
	}

	for _, n := range m.Params() {
		if !claimed[n.Name] {
			return errors.Errorf("Free parameter %s is not claimed by any kernel", n.Name)
		}
	}
	for name := range claimed {
		found := false
		for _, n := range m.Params() {
			if n.Name == name {
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("Kernel bound to %s, which is not a free parameter", name)
		}
	}

	return nil
}
