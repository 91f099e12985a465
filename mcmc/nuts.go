package mcmc

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// NUTS is the No-U-Turn sampler: HMC with the trajectory length chosen
// dynamically by doubling until the path turns back on itself. Step size and
// mass matrix adaptation are shared with the HMC kernel.
type NUTS struct {
	hmc      HMC
	MaxDepth int
}

// deltaMax is the divergence threshold on the joint log density drop
// (Hoffman & Gelman use 1000).
const deltaMax = 1000.0

// NewNUTS creates a NUTS kernel for the named parameters.
func NewNUTS(names ...string) *NUTS {
	return &NUTS{
		hmc:      HMC{names: names, Steps: 1, Eps0: 0.1, Target: 0.8},
		MaxDepth: 10,
	}
}

// Bound implements Kernel.
func (k *NUTS) Bound() []string { return k.hmc.names }

// Clone implements Kernel.
func (k *NUTS) Clone() Kernel {
	return &NUTS{
		hmc:      HMC{names: k.hmc.names, Steps: 1, Eps0: k.hmc.Eps0, Target: k.hmc.Target},
		MaxDepth: k.MaxDepth,
	}
}

// Init implements Kernel.
func (k *NUTS) Init(m *graph.Model, gen *rng.Generator) error {
	if k.MaxDepth < 1 {
		return errors.Errorf("NUTS max depth %d must be >= 1", k.MaxDepth)
	}
	if err := k.hmc.Init(m, gen); err != nil {
		return errors.Wrap(err, "NUTS kernel could not bind")
	}
	return nil
}

// EndEpoch implements Kernel.
func (k *NUTS) EndEpoch(t EpochType) error { return k.hmc.EndEpoch(t) }

// tree carries the state of one subtree during trajectory doubling.
type tree struct {
	minusX, minusP []float64 // Backward end of the trajectory
	plusX, plusP   []float64 // Forward end
	propX          []float64 // Proposal drawn uniformly from valid states
	n              int       // Valid states in the subtree
	stop           bool      // U-turn or divergence inside the subtree
	alpha          float64   // Summed acceptance statistic (for adaptation)
	nAlpha         int
}

// noUTurn is the U-turn criterion across the subtree span, using velocities
// so the mass matrix is respected.
func (k *NUTS) noUTurn(minusX, minusP, plusX, plusP []float64) bool {
	h := &k.hmc
	fwd, bwd := 0.0, 0.0
	for i := range plusX {
		d := plusX[i] - minusX[i]
		fwd += d * h.invMass[i] * plusP[i]
		bwd += d * h.invMass[i] * minusP[i]
	}
	return fwd >= 0 && bwd >= 0
}

// buildTree recursively doubles the trajectory in direction dir (+1/-1),
// collecting a multiplicity-weighted proposal from the slice-acceptable
// states (Hoffman & Gelman Algorithm 6).
func (k *NUTS) buildTree(x, p []float64, logu float64, dir float64, depth int, joint0, eps float64) *tree {
	h := &k.hmc
	dim := h.post.Dim()

	if depth == 0 {
		// Base case: a single leapfrog step in direction dir.
		x1 := make([]float64, dim)
		p1 := make([]float64, dim)
		grad := make([]float64, dim)
		copy(x1, x)
		copy(p1, p)
		h.post.Grad(grad, x1)
		h.leapfrog(x1, p1, grad, dir*eps)

		joint := h.post.LogProb(x1) - h.kinetic(p1)

		t := &tree{
			minusX: x1, minusP: p1,
			plusX: x1, plusP: p1,
			propX:  x1,
			nAlpha: 1,
		}
		if logu <= joint {
			t.n = 1
		}
		if logu-deltaMax >= joint {
			t.stop = true // divergent transition
		}

		a := math.Exp(joint - joint0)
		if math.IsNaN(a) {
			a = 0
		}
		if a > 1 {
			a = 1
		}
		t.alpha = a

		return t
	}

	// Recursion: build left and right subtrees.
	t := k.buildTree(x, p, logu, dir, depth-1, joint0, eps)
	if t.stop {
		return t
	}

	var t2 *tree
	if dir < 0 {
		t2 = k.buildTree(t.minusX, t.minusP, logu, dir, depth-1, joint0, eps)
		t.minusX, t.minusP = t2.minusX, t2.minusP
	} else {
		t2 = k.buildTree(t.plusX, t.plusP, logu, dir, depth-1, joint0, eps)
		t.plusX, t.plusP = t2.plusX, t2.plusP
	}

	if t2.n > 0 && k.hmc.gen.Float64() < float64(t2.n)/float64(t.n+t2.n) {
		t.propX = t2.propX
	}
	t.n += t2.n
	t.alpha += t2.alpha
	t.nAlpha += t2.nAlpha
	t.stop = t2.stop || !k.noUTurn(t.minusX, t.minusP, t.plusX, t.plusP)

	return t
}

// Step implements Kernel.
func (k *NUTS) Step(tuning bool) error {
	h := &k.hmc
	dim := h.post.Dim()

	p0 := make([]float64, dim)
	h.sampleMomentum(p0)

	eps := h.eps
	if tuning {
		eps = h.da.current()
	}

	joint0 := h.post.LogProb(h.x) - h.kinetic(p0)
	if math.IsInf(joint0, -1) {
		return errors.Errorf("NUTS started from a zero-probability state")
	}

	// Slice variable: log u = joint0 + log(uniform)
	logu := joint0 + math.Log(k.hmc.gen.Float64())

	minusX := append([]float64(nil), h.x...)
	plusX := append([]float64(nil), h.x...)
	minusP := append([]float64(nil), p0...)
	plusP := append([]float64(nil), p0...)
	prop := append([]float64(nil), h.x...)

	n := 1
	alpha, nAlpha := 0.0, 0

	for depth := 0; depth < k.MaxDepth; depth++ {
		dir := 1.0
		if k.hmc.gen.Float64() < 0.5 {
			dir = -1.0
		}

		var t *tree
		if dir < 0 {
			t = k.buildTree(minusX, minusP, logu, dir, depth, joint0, eps)
			minusX, minusP = t.minusX, t.minusP
		} else {
			t = k.buildTree(plusX, plusP, logu, dir, depth, joint0, eps)
			plusX, plusP = t.plusX, t.plusP
		}

		alpha += t.alpha
		nAlpha += t.nAlpha

		if !t.stop && t.n > 0 && k.hmc.gen.Float64() < float64(t.n)/float64(n) {
			copy(prop, t.propX)
		}
		n += t.n

		if t.stop || !k.noUTurn(minusX, minusP, plusX, plusP) {
			break
		}
	}

	copy(h.x, prop)
	if err := h.post.SetPosition(h.x); err != nil {
		return errors.Wrap(err, "NUTS could not restore position")
	}

	if tuning {
		a := 0.0
		if nAlpha > 0 {
			a = alpha / float64(nAlpha)
		}
		h.da.update(a)
		h.est.add(h.x)
	}

	return nil
}
