package mcmc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochCheck(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		e  Epoch
		ok bool
	}{
		{Epoch{Warmup, 100, 1}, true},
		{Epoch{Posterior, 1, 1}, true},
		{Epoch{Posterior, 1000, 10}, true},
		{Epoch{Terminal, 50, 2}, true},
		{Epoch{Warmup, 100, 2}, false},
		{Epoch{Warmup, 0, 1}, false},
		{Epoch{Posterior, 100, 0}, false},
		{Epoch{EpochType(99), 100, 1}, false},
	}

	for _, c := range cases {
		err := c.e.Check()
		if c.ok {
			assert.NoError(err, "epoch %+v", c.e)
		} else {
			assert.Error(err, "epoch %+v", c.e)
		}
	}
}

func TestEpochTypeNames(t *testing.T) {
	assert := assert.New(t)

	for _, et := range []EpochType{Warmup, Posterior, Terminal} {
		back, err := EpochTypeByName(et.String())
		assert.NoError(err)
		assert.Equal(et, back)
	}

	assert.Equal("unknown", EpochType(42).String())
	_, err := EpochTypeByName("burnin")
	assert.Error(err)
}

func TestCheckSchedule(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(CheckSchedule([]Epoch{
		{Warmup, 100, 1},
		{Warmup, 100, 1},
		{Posterior, 500, 1},
		{Posterior, 500, 5},
		{Terminal, 10, 1},
	}))

	assert.Error(CheckSchedule(nil))

	// Warmup after posterior
	assert.Error(CheckSchedule([]Epoch{
		{Posterior, 100, 1},
		{Warmup, 100, 1},
	}))

	// Terminal not last
	assert.Error(CheckSchedule([]Epoch{
		{Terminal, 10, 1},
		{Posterior, 100, 1},
	}))

	// Invalid member epoch
	assert.Error(CheckSchedule([]Epoch{
		{Warmup, 0, 1},
	}))
}
