package report

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tmoller/quiver/dist"
	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/mcmc"
	"github.com/tmoller/quiver/rng"
)

// iidResults runs a tiny engine whose Gibbs kernel draws mu ~ Normal(1, 0.5)
// independently each step, giving results with known moments and almost no
// autocorrelation.
func iidResults(t *testing.T, chains, draws int) *mcmc.Results {
	assert := assert.New(t)

	mu := graph.Param("mu", 0).SetDist("Normal", map[string]*graph.Node{
		"loc":   graph.Hyper("loc", 1),
		"scale": graph.Hyper("scale", 0.5),
	})
	m, err := graph.NewModel("iid", mu)
	assert.NoError(err)

	fc := func(gen *rng.Generator, s mcmc.State) ([]float64, error) {
		return dist.Rand("Normal", dist.Params{"loc": {1}, "scale": {0.5}}, gen, 1)
	}

	eng, err := mcmc.NewEngine(m, mcmc.Config{
		Seed:    21,
		Chains:  chains,
		Kernels: []mcmc.Kernel{mcmc.NewGibbs(fc, "mu")},
		Epochs:  []mcmc.Epoch{{Type: mcmc.Posterior, Length: draws, Thin: 1}},
	})
	assert.NoError(err)
	assert.NoError(eng.Run())

	return eng.Results()
}

func TestSummarize(t *testing.T) {
	assert := assert.New(t)

	res := iidResults(t, 3, 400)

	rows, err := Summarize(res, 0.95)
	assert.NoError(err)
	assert.Len(rows, 1)

	s := rows[0]
	assert.Equal("mu", s.Name)
	assert.Equal(0, s.Elem)

	assert.InDelta(1.0, s.Mean, 0.1)
	assert.InDelta(0.5, s.SD, 0.1)
	assert.Less(s.Lo, s.Mean)
	assert.Less(s.Mean, s.Hi)
	assert.InDelta(1.0-1.96*0.5, s.Lo, 0.25)
	assert.InDelta(1.0+1.96*0.5, s.Hi, 0.25)

	// Independent draws: high effective size, chains agree
	assert.Greater(s.ESS, 0.25*float64(3*400))
	assert.InDelta(1.0, s.Rhat, 0.1)
}

func TestSummarizeErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := Summarize(nil, 0.95)
	assert.Error(err)

	res := iidResults(t, 2, 100)
	_, err = Summarize(res, 0)
	assert.Error(err)
	_, err = Summarize(res, 1)
	assert.Error(err)

	short := iidResults(t, 2, 2)
	_, err = Summarize(short, 0.95)
	assert.Error(err)
}

func TestEffectiveSize(t *testing.T) {
	assert := assert.New(t)

	gen, err := rng.NewGenerator(5)
	assert.NoError(err)

	const n = 400
	iid := make([][]float64, 2)
	walk := make([][]float64, 2)
	for c := 0; c < 2; c++ {
		iid[c] = make([]float64, n)
		walk[c] = make([]float64, n)
		acc := 0.0
		for i := 0; i < n; i++ {
			v := gen.Float64() - 0.5
			iid[c][i] = v
			acc += v
			walk[c][i] = acc
		}
	}

	essIID := EffectiveSize(iid)
	essWalk := EffectiveSize(walk)
	assert.Greater(essIID, 0.25*float64(2*n))
	assert.Less(essWalk, essIID/4)

	// Degenerate inputs
	assert.True(math.IsNaN(EffectiveSize(nil)))
	assert.True(math.IsNaN(EffectiveSize([][]float64{{1, 2}})))
	assert.True(math.IsNaN(EffectiveSize([][]float64{{3, 3, 3, 3, 3, 3}})))
}

func TestSplitRhat(t *testing.T) {
	assert := assert.New(t)

	gen, err := rng.NewGenerator(9)
	assert.NoError(err)

	const n = 400
	same := make([][]float64, 3)
	apart := make([][]float64, 3)
	for c := 0; c < 3; c++ {
		same[c] = make([]float64, n)
		apart[c] = make([]float64, n)
		for i := 0; i < n; i++ {
			v := gen.Float64()
			same[c][i] = v
			apart[c][i] = v + float64(c)*5
		}
	}

	assert.InDelta(1.0, SplitRhat(same), 0.1)
	assert.Greater(SplitRhat(apart), 2.0)

	assert.True(math.IsNaN(SplitRhat(nil)))
	assert.True(math.IsNaN(SplitRhat([][]float64{{1, 2}})))
}

func TestRender(t *testing.T) {
	assert := assert.New(t)

	rows := []ParamSummary{
		{Name: "mu", Elem: 0, Mean: 1, SD: 0.5, Lo: 0, Hi: 2, ESS: 900, Rhat: 1.01},
		{Name: "beta", Elem: 0, Mean: 0, SD: 1, Lo: -2, Hi: 2, ESS: 500, Rhat: 1.0},
		{Name: "beta", Elem: 1, Mean: 0, SD: 1, Lo: -2, Hi: 2, ESS: 500, Rhat: 1.0},
	}

	var buf bytes.Buffer
	Render(&buf, rows)

	out := buf.String()
	assert.Contains(out, "Parameter")
	assert.Contains(out, "Rhat")
	assert.Contains(out, "mu ")
	assert.Contains(out, "beta[0]")
	assert.Contains(out, "beta[1]")
	assert.NotContains(out, "mu[0]")
}
