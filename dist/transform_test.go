package dist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformRoundTrips(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-10

	cases := []struct {
		tr   Transform
		vals []float64
	}{
		{LogTransform{}, []float64{0.001, 0.5, 1, 10, 1234.5}},
		{LogitTransform{}, []float64{0.001, 0.25, 0.5, 0.75, 0.999}},
	}

	for _, c := range cases {
		for _, x := range c.vals {
			y := c.tr.Forward(x)
			assert.InDelta(x, c.tr.Backward(y), eps)
		}
	}
}

func TestTransformJacobians(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-6

	// Compare LogDetJac against a numerical derivative of Backward
	check := func(tr Transform, ys []float64) {
		const h = 1e-6
		for _, y := range ys {
			num := (tr.Backward(y+h) - tr.Backward(y-h)) / (2 * h)
			assert.InDelta(math.Log(num), tr.LogDetJac(y), eps, "transform %s at %f", tr.Name(), y)
		}
	}

	check(LogTransform{}, []float64{-2, -0.5, 0, 0.5, 2})
	check(LogitTransform{}, []float64{-4, -1, 0, 1, 4})
}

func TestTransformByName(t *testing.T) {
	assert := assert.New(t)

	tr, err := ByName("log")
	assert.NoError(err)
	assert.Equal("log", tr.Name())

	tr, err = ByName("logit")
	assert.NoError(err)
	assert.Equal("logit", tr.Name())

	_, err = ByName("sqrt")
	assert.Error(err)
}

func TestTransformedLogProb(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-10

	p := Params{"shape": {2}, "rate": {1}}

	// Scoring y on the log scale must equal the base density at exp(y) plus
	// the log Jacobian y.
	y := 0.35
	base, err := LogProb("Gamma", p, []float64{math.Exp(y)})
	assert.NoError(err)

	lp, err := TransformedLogProb("Gamma", p, LogTransform{}, []float64{y})
	assert.NoError(err)
	assert.InDelta(base+y, lp, eps)

	// Nil transform falls through to the plain density
	lp, err = TransformedLogProb("Gamma", p, nil, []float64{1.5})
	assert.NoError(err)
	plain, err := LogProb("Gamma", p, []float64{1.5})
	assert.NoError(err)
	assert.InDelta(plain, lp, eps)
}
