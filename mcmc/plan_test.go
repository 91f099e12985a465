package mcmc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const planYAML = `
seed: 42
chains: 3
epochs:
  - {type: warmup, length: 500}
  - {type: posterior, length: 1000, thin: 2}
`

func TestParsePlan(t *testing.T) {
	assert := assert.New(t)

	p, err := ParsePlan([]byte(planYAML))
	assert.NoError(err)
	assert.Equal(int64(42), p.Seed)
	assert.Equal(3, p.Chains)

	sched, err := p.Schedule()
	assert.NoError(err)
	assert.Equal([]Epoch{
		{Warmup, 500, 1},
		{Posterior, 1000, 2},
	}, sched)

	// Missing chain count defaults to 1
	p, err = ParsePlan([]byte("epochs:\n  - {type: posterior, length: 10}\n"))
	assert.NoError(err)
	assert.Equal(1, p.Chains)
}

func TestParsePlanErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := ParsePlan([]byte("{{nope"))
	assert.Error(err)

	// Unknown epoch type
	_, err = ParsePlan([]byte("epochs:\n  - {type: burnin, length: 10}\n"))
	assert.Error(err)

	// Schedule violation surfaces at parse time
	_, err = ParsePlan([]byte(
		"epochs:\n  - {type: posterior, length: 10}\n  - {type: warmup, length: 10}\n",
	))
	assert.Error(err)
}

func TestDefaultPlan(t *testing.T) {
	assert := assert.New(t)

	sched, err := DefaultPlan().Schedule()
	assert.NoError(err)
	assert.Len(sched, 2)
	assert.Equal(Warmup, sched[0].Type)
	assert.Equal(Posterior, sched[1].Type)
}

func TestLoadPlan(t *testing.T) {
	assert := assert.New(t)

	fn := filepath.Join(t.TempDir(), "plan.yaml")
	assert.NoError(os.WriteFile(fn, []byte(planYAML), 0644))

	p, err := LoadPlan(fn)
	assert.NoError(err)
	assert.Equal(int64(42), p.Seed)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(err)
}
