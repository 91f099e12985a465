package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmoller/quiver/dist"
)

// scaleModel has a positive scale parameter worth reparameterizing:
// sigma ~ Exponential(1), y ~ Normal(0, sigma)
func scaleModel(t *testing.T) *Model {
	sigma := Param("sigma", 0.8).SetDist("Exponential", map[string]*Node{
		"rate": Hyper("rate", 1),
	})
	y := Covariate("y", -0.3, 0.4, 1.1).SetDist("Normal", map[string]*Node{
		"loc":   Hyper("loc", 0),
		"scale": sigma,
	})

	m, err := NewModel("scale-model", y)
	assert.NoError(t, err)
	return m
}

func TestTransformParameter(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-10

	m := scaleModel(t)
	origLP, err := m.LogProb()
	assert.NoError(err)

	tm, err := TransformParameter(m, "sigma", dist.LogTransform{})
	assert.NoError(err)

	// Original model untouched
	assert.Len(m.Nodes, 4)
	sv, err := m.Value("sigma")
	assert.NoError(err)
	assert.InDeltaSlice([]float64{0.8}, sv, eps)

	// New model: twin parameter on the log scale, original name now weak
	assert.Len(tm.Nodes, 5)

	twin, ok := tm.Node("sigma_transformed")
	assert.True(ok)
	assert.True(twin.Free())
	assert.InDelta(math.Log(0.8), twin.Val[0], eps)

	back, ok := tm.Node("sigma")
	assert.True(ok)
	assert.False(back.Strong())
	assert.False(back.Free())
	assert.InDelta(0.8, back.Val[0], eps)

	ps := tm.Params()
	assert.Len(ps, 1)
	assert.Equal("sigma_transformed", ps[0].Name)

	// At the corresponding point, the transformed model's log probability is
	// the original plus the log Jacobian of the back transform.
	tmLP, err := tm.LogProb()
	assert.NoError(err)
	assert.InDelta(origLP+math.Log(0.8), tmLP, eps)

	// Moving the unconstrained twin flows through the back transform
	assert.NoError(tm.SetValue("sigma_transformed", []float64{0}))
	_, err = tm.LogProb()
	assert.NoError(err)
	bv, err := tm.Value("sigma")
	assert.NoError(err)
	assert.InDeltaSlice([]float64{1}, bv, eps)
}

func TestTransformParameterErrors(t *testing.T) {
	assert := assert.New(t)

	m := scaleModel(t)

	_, err := TransformParameter(m, "sigma", nil)
	assert.Error(err)

	_, err = TransformParameter(m, "nope", dist.LogTransform{})
	assert.Error(err)

	// Observed and weak nodes are not free parameters
	_, err = TransformParameter(m, "y", dist.LogTransform{})
	assert.Error(err)
	_, err = TransformParameter(m, "rate", dist.LogTransform{})
	assert.Error(err)

	// After a transform the original name is weak, so a second transform
	// of the same name is rejected
	tm, err := TransformParameter(m, "sigma", dist.LogTransform{})
	assert.NoError(err)
	_, err = TransformParameter(tm, "sigma", dist.LogTransform{})
	assert.Error(err)
}
