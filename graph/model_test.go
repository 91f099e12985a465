package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// normLogPDF is a hand-rolled check value for the tests
func normLogPDF(x, loc, scale float64) float64 {
	z := (x - loc) / scale
	return -0.5*z*z - math.Log(scale) - 0.5*math.Log(2*math.Pi)
}

// vanillaModel is a tiny location model: mu ~ Normal(0, 10), y ~ Normal(mu, 1)
func vanillaModel(t *testing.T, ys ...float64) *Model {
	mu := Param("mu", 0.5).SetDist("Normal", map[string]*Node{
		"loc":   Hyper("mu_loc", 0),
		"scale": Hyper("mu_scale", 10),
	})
	y := Covariate("y", ys...).SetDist("Normal", map[string]*Node{
		"loc":   mu,
		"scale": Hyper("y_scale", 1),
	})

	m, err := NewModel("TestingModel", y)
	assert.NoError(t, err)
	return m
}

func TestModelCreation(t *testing.T) {
	assert := assert.New(t)

	m := vanillaModel(t, 1, 2)
	assert.NoError(m.Check())
	assert.Len(m.Nodes, 5)

	// Topological order: every parent before its child
	for _, n := range m.Nodes {
		for _, p := range n.parents() {
			assert.Less(p.ID, n.ID)
		}
	}

	// Free parameters: just mu
	ps := m.Params()
	assert.Len(ps, 1)
	assert.Equal("mu", ps[0].Name)

	mu, ok := m.Node("mu")
	assert.True(ok)
	assert.True(mu.Free())

	_, ok = m.Node("nope")
	assert.False(ok)
}

func TestModelErrors(t *testing.T) {
	assert := assert.New(t)

	// No response nodes
	_, err := NewModel("empty")
	assert.Error(err)

	// Nil response
	_, err = NewModel("nil-resp", nil)
	assert.Error(err)

	// No distributed node anywhere
	_, err = NewModel("no-dist", Covariate("y", 1, 2, 3))
	assert.Error(err)

	// Duplicate names
	a := Param("dup", 1).SetDist("Normal", map[string]*Node{
		"loc":   Hyper("dup", 0),
		"scale": Hyper("s", 1),
	})
	_, err = NewModel("dups", a)
	assert.Error(err)

	// Unknown distribution identifier
	b := Param("b", 1).SetDist("Nope", map[string]*Node{"x": Hyper("h", 0)})
	_, err = NewModel("bad-dist", b)
	assert.Error(err)

	// Cycle through weak nodes
	w1 := &Node{Name: "w1", Calc: func(in ...[]float64) []float64 { return in[0] }}
	w2 := Weak("w2", func(in ...[]float64) []float64 { return in[0] }, w1)
	w1.Inputs = []*Node{w2}
	w1.Dist = &DistRef{Name: "Normal", Args: map[string]*Node{
		"loc":   Hyper("l", 0),
		"scale": Hyper("s", 1),
	}}
	_, err = NewModel("cycle", w1)
	assert.Error(err)
}

func TestModelAutoNames(t *testing.T) {
	assert := assert.New(t)

	mu := Param("", 0).SetDist("Normal", map[string]*Node{
		"loc":   Hyper("", 0),
		"scale": Hyper("", 1),
	})
	m, err := NewModel("anon", mu)
	assert.NoError(err)

	seen := make(map[string]bool)
	for _, n := range m.Nodes {
		assert.NotEqual("", n.Name)
		assert.False(seen[n.Name])
		seen[n.Name] = true
	}
}

func TestModelLogProb(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-10

	m := vanillaModel(t, 1, 2)

	exp := normLogPDF(0.5, 0, 10) + normLogPDF(1, 0.5, 1) + normLogPDF(2, 0.5, 1)
	lp, err := m.LogProb()
	assert.NoError(err)
	assert.InDelta(exp, lp, eps)

	// Moving the parameter moves the log probability
	assert.NoError(m.SetValue("mu", []float64{1.5}))
	exp = normLogPDF(1.5, 0, 10) + normLogPDF(1, 1.5, 1) + normLogPDF(2, 1.5, 1)
	lp, err = m.LogProb()
	assert.NoError(err)
	assert.InDelta(exp, lp, eps)
}

func TestModelWeakRecompute(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-10

	b := Param("b", 2).SetDist("Normal", map[string]*Node{
		"loc":   Hyper("bl", 0),
		"scale": Hyper("bs", 10),
	})
	x := Covariate("x", 1, 2, 3)
	mu := Weak("mu", func(in ...[]float64) []float64 {
		bv, xv := in[0], in[1]
		out := make([]float64, len(xv))
		for i, v := range xv {
			out[i] = bv[0] * v
		}
		return out
	}, b, x)
	y := Covariate("y", 2, 4, 6).SetDist("Normal", map[string]*Node{
		"loc":   mu,
		"scale": Hyper("ys", 1),
	})

	m, err := NewModel("weak", y)
	assert.NoError(err)

	muVal, err := m.Value("mu")
	assert.NoError(err)
	assert.InDeltaSlice([]float64{2, 4, 6}, muVal, eps)

	// Weak nodes can not be set directly
	assert.Error(m.SetValue("mu", []float64{0, 0, 0}))

	// Changing b flows through on the next LogProb
	assert.NoError(m.SetValue("b", []float64{3}))
	_, err = m.LogProb()
	assert.NoError(err)

	muVal, err = m.Value("mu")
	assert.NoError(err)
	assert.InDeltaSlice([]float64{3, 6, 9}, muVal, eps)

	// Length changes are rejected
	assert.Error(m.SetValue("b", []float64{1, 2}))
	assert.Error(m.SetValue("nope", []float64{1}))
}

func TestModelClone(t *testing.T) {
	assert := assert.New(t)

	const eps = 1e-10

	m := vanillaModel(t, 1, 2)
	cp := m.Clone()

	lp1, err := m.LogProb()
	assert.NoError(err)
	lp2, err := cp.LogProb()
	assert.NoError(err)
	assert.InDelta(lp1, lp2, eps)

	// Mutating the clone leaves the original alone
	assert.NoError(cp.SetValue("mu", []float64{9}))
	orig, err := m.Value("mu")
	assert.NoError(err)
	assert.InDeltaSlice([]float64{0.5}, orig, eps)

	lp2b, err := cp.LogProb()
	assert.NoError(err)
	assert.NotEqual(lp2, lp2b)
}
