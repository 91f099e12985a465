package dist

import (
	"math"

	"github.com/pkg/errors"
)

// A Transform is a monotonic bijection between a constrained parameter space
// and the unconstrained real line. Forward maps constrained to unconstrained,
// Backward maps back, and LogDetJac is log|d Backward(y)/dy| - the change of
// variables correction a density picks up under the reparameterization.
type Transform interface {
	Name() string
	Forward(x float64) float64
	Backward(y float64) float64
	LogDetJac(y float64) float64
}

// LogTransform maps (0, inf) to the real line via log/exp.
type LogTransform struct{}

// Name implements Transform.
func (LogTransform) Name() string { return "log" }

// Forward implements Transform.
func (LogTransform) Forward(x float64) float64 { return math.Log(x) }

// Backward implements Transform.
func (LogTransform) Backward(y float64) float64 { return math.Exp(y) }

// LogDetJac implements Transform: d exp(y)/dy = exp(y), so the log is y.
func (LogTransform) LogDetJac(y float64) float64 { return y }

// LogitTransform maps (0, 1) to the real line via logit/sigmoid.
type LogitTransform struct{}

// Name implements Transform.
func (LogitTransform) Name() string { return "logit" }

// Forward implements Transform.
func (LogitTransform) Forward(x float64) float64 { return math.Log(x) - math.Log1p(-x) }

// Backward implements Transform.
func (LogitTransform) Backward(y float64) float64 {
	if y >= 0 {
		return 1.0 / (1.0 + math.Exp(-y))
	}
	e := math.Exp(y)
	return e / (1.0 + e)
}

// LogDetJac implements Transform: the sigmoid derivative is s(y)(1-s(y)),
// computed as -softplus(y) - softplus(-y) for stability at large |y|.
func (LogitTransform) LogDetJac(y float64) float64 {
	return -softplus(y) - softplus(-y)
}

// softplus is log(1+exp(z)) without overflow for large z.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// ByName resolves a transform identifier. Used by plan files and the CLI.
func ByName(name string) (Transform, error) {
	switch name {
	case "log":
		return LogTransform{}, nil
	case "logit":
		return LogitTransform{}, nil
	}
	return nil, errors.Errorf("Unknown transform %s", name)
}

// TransformedLogProb scores an unconstrained value vector y against a base
// distribution defined on the constrained scale: the base log density at
// Backward(y) plus the log Jacobian at y.
func TransformedLogProb(name string, p Params, t Transform, y []float64) (float64, error) {
	if t == nil {
		return LogProb(name, p, y)
	}

	x := make([]float64, len(y))
	jac := 0.0
	for i, v := range y {
		x[i] = t.Backward(v)
		jac += t.LogDetJac(v)
	}

	lp, err := LogProb(name, p, x)
	if err != nil {
		return 0, errors.Wrapf(err, "Could not score back-transformed value under %s", name)
	}

	return lp + jac, nil
}
