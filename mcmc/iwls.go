package mcmc

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// IWLS is an iteratively-weighted-least-squares kernel: the proposal is a
// Gaussian centered on a Fisher scoring step from the current position, with
// the observed information (negative Hessian of the log probability) as the
// inverse proposal covariance, corrected by a Metropolis-Hastings accept
// step. Effective for the regression-coefficient blocks of semi-parametric
// models, where the log density is close to quadratic.
type IWLS struct {
	names    []string
	StepFrac float64 // Fraction of the full scoring step to propose (1 = full)

	post *posterior
	gen  *rng.Generator
	x    []float64
	hess [][]float64
}

// NewIWLS creates an IWLS kernel for the named parameters.
func NewIWLS(names ...string) *IWLS {
	return &IWLS{names: names, StepFrac: 1.0}
}

// Bound implements Kernel.
func (k *IWLS) Bound() []string { return k.names }

// Clone implements Kernel.
func (k *IWLS) Clone() Kernel {
	return &IWLS{names: k.names, StepFrac: k.StepFrac}
}

// Init implements Kernel.
func (k *IWLS) Init(m *graph.Model, gen *rng.Generator) error {
	if k.StepFrac <= 0 || k.StepFrac > 1 {
		return errors.Errorf("IWLS step fraction %f must be in (0, 1]", k.StepFrac)
	}

	post, err := newPosterior(m, k.names)
	if err != nil {
		return errors.Wrap(err, "IWLS kernel could not bind")
	}

	k.post = post
	k.gen = gen
	k.x = post.Position(nil)

	d := post.Dim()
	k.hess = make([][]float64, d)
	for i := range k.hess {
		k.hess[i] = make([]float64, d)
	}

	return nil
}

// proposal builds the scoring-step Gaussian at position x: mean x +
// StepFrac * Sigma * grad, covariance Sigma = (-H)^-1. Falls back to a unit
// covariance when the information matrix is not positive definite (flat or
// saddle regions).
func (k *IWLS) proposal(x []float64) (*distmv.Normal, error) {
	d := k.post.Dim()

	grad := k.post.Grad(nil, x)
	k.post.Hessian(k.hess, x)

	info := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			info.SetSym(i, j, -0.5*(k.hess[i][j]+k.hess[j][i]))
		}
	}

	sigma := mat.NewSymDense(d, nil)
	var chol mat.Cholesky
	if chol.Factorize(info) {
		if err := chol.InverseTo(sigma); err != nil {
			return nil, errors.Wrap(err, "Could not invert information matrix")
		}
	} else {
		for i := 0; i < d; i++ {
			sigma.SetSym(i, i, 1.0)
		}
	}

	mean := make([]float64, d)
	for i := 0; i < d; i++ {
		step := 0.0
		for j := 0; j < d; j++ {
			step += sigma.At(i, j) * grad[j]
		}
		mean[i] = x[i] + k.StepFrac*step
	}

	prop, ok := distmv.NewNormal(mean, sigma, k.gen)
	if !ok {
		return nil, errors.Errorf("Proposal covariance is not positive definite")
	}

	return prop, nil
}

// Step implements Kernel. Both forward and reverse proposal densities are
// position dependent, so the Hastings correction rebuilds the proposal at
// the proposed point.
func (k *IWLS) Step(tuning bool) error {
	fwd, err := k.proposal(k.x)
	if err != nil {
		return errors.Wrap(err, "IWLS forward proposal failed")
	}

	y := fwd.Rand(nil)
	lpX := k.post.LogProb(k.x)
	lpY := k.post.LogProb(y)

	if !math.IsInf(lpY, -1) {
		rev, err := k.proposal(y)
		if err != nil {
			return errors.Wrap(err, "IWLS reverse proposal failed")
		}

		logAlpha := lpY - lpX + rev.LogProb(k.x) - fwd.LogProb(y)
		if logAlpha >= 0 || math.Log(k.gen.Float64()) < logAlpha {
			copy(k.x, y)
		}
	}

	return errors.Wrap(k.post.SetPosition(k.x), "IWLS could not restore position")
}

// EndEpoch implements Kernel: the scoring proposal has no tuned state.
func (k *IWLS) EndEpoch(t EpochType) error { return nil }
