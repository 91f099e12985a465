package mcmc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gonum.org/v1/gonum/stat"
)

// The loc-model posterior is conjugate: mu | y ~ Normal(4.2/4.01, 1/4.01).
// Every gradient-based kernel should recover that mean on a short run.
const locPostMean = 4.2 / 4.01

func kernelRun(t *testing.T, k Kernel) []float64 {
	assert := assert.New(t)

	eng, err := NewEngine(locModel(t), Config{
		Seed:    13,
		Chains:  2,
		Kernels: []Kernel{k},
		Epochs: []Epoch{
			{Warmup, 200, 1},
			{Posterior, 200, 1},
		},
	})
	assert.NoError(err)
	assert.NoError(eng.Run())

	flat, err := eng.Results().Flat("mu", 0)
	assert.NoError(err)
	assert.Len(flat, 400)
	return flat
}

func TestNUTSKernel(t *testing.T) {
	assert := assert.New(t)

	flat := kernelRun(t, NewNUTS("mu"))
	assert.InDelta(locPostMean, stat.Mean(flat, nil), 0.4)
}

func TestHMCKernel(t *testing.T) {
	assert := assert.New(t)

	flat := kernelRun(t, NewHMC(10, "mu"))
	assert.InDelta(locPostMean, stat.Mean(flat, nil), 0.4)
}

func TestIWLSKernel(t *testing.T) {
	assert := assert.New(t)

	flat := kernelRun(t, NewIWLS("mu"))
	assert.InDelta(locPostMean, stat.Mean(flat, nil), 0.4)
}

func TestRWMetropolisKernel(t *testing.T) {
	assert := assert.New(t)

	flat := kernelRun(t, NewRWMetropolis("mu"))
	assert.InDelta(locPostMean, stat.Mean(flat, nil), 0.4)
}

func TestKernelBindErrors(t *testing.T) {
	assert := assert.New(t)

	// Binding to zero parameters fails at Init
	_, err := NewEngine(locModel(t), Config{
		Seed:    13,
		Chains:  1,
		Kernels: []Kernel{NewNUTS()},
		Epochs:  []Epoch{{Posterior, 5, 1}},
	})
	assert.Error(err)
}
