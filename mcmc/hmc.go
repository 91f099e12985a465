package mcmc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// dualAverage implements Nesterov dual averaging of the leapfrog step size
// toward a target acceptance statistic (Hoffman & Gelman's schedule).
type dualAverage struct {
	mu        float64
	logEps    float64
	logEpsBar float64
	hBar      float64
	t         int
	target    float64
}

func newDualAverage(eps0, target float64) *dualAverage {
	return &dualAverage{
		mu:        math.Log(10 * eps0),
		logEps:    math.Log(eps0),
		logEpsBar: 0,
		target:    target,
	}
}

func (da *dualAverage) update(accept float64) {
	const (
		gamma = 0.05
		t0    = 10.0
		kappa = 0.75
	)

	da.t++
	t := float64(da.t)

	w := 1.0 / (t + t0)
	da.hBar = (1-w)*da.hBar + w*(da.target-accept)
	da.logEps = da.mu - math.Sqrt(t)/gamma*da.hBar

	m := math.Pow(t, -kappa)
	da.logEpsBar = m*da.logEps + (1-m)*da.logEpsBar
}

// current is the adapting step size, final the smoothed one to freeze.
func (da *dualAverage) current() float64 { return math.Exp(da.logEps) }
func (da *dualAverage) final() float64   { return math.Exp(da.logEpsBar) }

// welford tracks running per-component mean and variance of warmup positions
// for diagonal mass matrix estimation.
type welford struct {
	n    int
	mean []float64
	m2   []float64
}

func newWelford(dim int) *welford {
	return &welford{
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

func (w *welford) add(x []float64) {
	w.n++
	for i, v := range x {
		d := v - w.mean[i]
		w.mean[i] += d / float64(w.n)
		w.m2[i] += d * (v - w.mean[i])
	}
}

// variance writes regularized sample variances into dst, shrinking toward a
// small constant the way Stan's window adaptation does so a short warmup
// can not produce a degenerate mass matrix.
func (w *welford) variance(dst []float64) bool {
	if w.n < 10 {
		return false
	}
	n := float64(w.n)
	for i := range dst {
		v := w.m2[i] / (n - 1)
		dst[i] = (n/(n+5.0))*v + (5.0/(n+5.0))*1e-3
	}
	return true
}

func (w *welford) reset() {
	w.n = 0
	for i := range w.mean {
		w.mean[i] = 0
		w.m2[i] = 0
	}
}

// HMC is a Hamiltonian Monte Carlo kernel with a fixed leapfrog trajectory
// length, dual-averaged step size, and a diagonal mass matrix estimated from
// warmup draws.
type HMC struct {
	names  []string
	Steps  int     // Leapfrog steps per transition
	Eps0   float64 // Initial step size (heuristically refined at Init)
	Target float64 // Target acceptance statistic

	post    *posterior
	gen     *rng.Generator
	x       []float64
	invMass []float64 // Estimated posterior variances (velocity = invMass .* momentum)
	eps     float64
	da      *dualAverage
	est     *welford
}

// NewHMC creates an HMC kernel for the named parameters.
func NewHMC(steps int, names ...string) *HMC {
	return &HMC{
		names:  names,
		Steps:  steps,
		Eps0:   0.1,
		Target: 0.8,
	}
}

// Bound implements Kernel.
func (k *HMC) Bound() []string { return k.names }

// Clone implements Kernel.
func (k *HMC) Clone() Kernel {
	return &HMC{names: k.names, Steps: k.Steps, Eps0: k.Eps0, Target: k.Target}
}

// Init implements Kernel.
func (k *HMC) Init(m *graph.Model, gen *rng.Generator) error {
	if k.Steps < 1 {
		return errors.Errorf("HMC needs at least 1 leapfrog step, got %d", k.Steps)
	}

	post, err := newPosterior(m, k.names)
	if err != nil {
		return errors.Wrap(err, "HMC kernel could not bind")
	}

	k.post = post
	k.gen = gen
	k.x = post.Position(nil)
	k.invMass = make([]float64, post.Dim())
	for i := range k.invMass {
		k.invMass[i] = 1.0
	}
	k.est = newWelford(post.Dim())

	k.eps = k.reasonableEps(k.Eps0)
	k.da = newDualAverage(k.eps, k.Target)

	return nil
}

// sampleMomentum draws p ~ N(0, M) with M the diagonal inverse of invMass.
func (k *HMC) sampleMomentum(dst []float64) {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: k.gen}
	for i := range dst {
		dst[i] = norm.Rand() / math.Sqrt(k.invMass[i])
	}
}

// kinetic is 0.5 * p' M^-1 p for the diagonal mass matrix.
func (k *HMC) kinetic(p []float64) float64 {
	sum := 0.0
	for i, v := range p {
		sum += k.invMass[i] * v * v
	}
	return 0.5 * sum
}

// leapfrog advances position and momentum in place by one step of size eps.
// grad must hold the gradient at x on entry and holds the gradient at the
// new x on exit.
func (k *HMC) leapfrog(x, p, grad []float64, eps float64) {
	for i := range p {
		p[i] += 0.5 * eps * grad[i]
	}
	for i := range x {
		x[i] += eps * k.invMass[i] * p[i]
	}
	k.post.Grad(grad, x)
	for i := range p {
		p[i] += 0.5 * eps * grad[i]
	}
}

// reasonableEps doubles or halves eps0 until a single leapfrog step crosses
// 50% acceptance (the standard Hoffman & Gelman heuristic).
func (k *HMC) reasonableEps(eps0 float64) float64 {
	eps := eps0
	dim := k.post.Dim()

	x := make([]float64, dim)
	p := make([]float64, dim)
	grad := make([]float64, dim)

	copy(x, k.x)
	k.sampleMomentum(p)
	k.post.Grad(grad, x)

	joint0 := k.post.LogProb(x) - k.kinetic(p)
	if math.IsInf(joint0, -1) {
		return eps
	}

	k.leapfrog(x, p, grad, eps)
	logRatio := k.post.LogProb(x) - k.kinetic(p) - joint0

	dir := 1.0
	if logRatio < math.Log(0.5) {
		dir = -1.0
	}

	for i := 0; i < 50; i++ {
		if dir > 0 && logRatio <= math.Log(0.5) {
			break
		}
		if dir < 0 && logRatio >= math.Log(0.5) {
			break
		}
		eps *= math.Pow(2, dir)

		copy(x, k.x)
		k.sampleMomentum(p)
		k.post.Grad(grad, x)
		joint0 = k.post.LogProb(x) - k.kinetic(p)
		k.leapfrog(x, p, grad, eps)
		logRatio = k.post.LogProb(x) - k.kinetic(p) - joint0
		if math.IsNaN(logRatio) || math.IsInf(logRatio, 0) {
			dir = -1.0
			logRatio = math.Inf(-1)
		}
	}

	return eps
}

// Step implements Kernel.
func (k *HMC) Step(tuning bool) error {
	dim := k.post.Dim()

	x := make([]float64, dim)
	p := make([]float64, dim)
	grad := make([]float64, dim)

	copy(x, k.x)
	k.sampleMomentum(p)
	k.post.Grad(grad, x)

	eps := k.eps
	if tuning {
		eps = k.da.current()
	}

	joint0 := k.post.LogProb(k.x) - k.kinetic(p)

	for i := 0; i < k.Steps; i++ {
		k.leapfrog(x, p, grad, eps)
	}

	joint1 := k.post.LogProb(x) - k.kinetic(p)

	accProb := math.Exp(joint1 - joint0)
	if math.IsNaN(accProb) {
		accProb = 0
	}
	if accProb > 1 {
		accProb = 1
	}

	if k.gen.Float64() < accProb {
		copy(k.x, x)
	}
	if err := k.post.SetPosition(k.x); err != nil {
		return errors.Wrap(err, "HMC could not restore position")
	}

	if tuning {
		k.da.update(accProb)
		k.est.add(k.x)
	}

	return nil
}

// EndEpoch implements Kernel: at the end of each warmup epoch the mass
// matrix is refreshed from the collected positions and step size adaptation
// restarts around the smoothed value.
func (k *HMC) EndEpoch(t EpochType) error {
	if t != Warmup {
		return nil
	}

	k.eps = k.da.final()
	if k.est.variance(k.invMass) {
		k.est.reset()
	}
	k.da = newDualAverage(k.eps, k.Target)

	return nil
}
