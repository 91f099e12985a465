package mcmc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Plan is the YAML form of a sampling run: seed, chain count, and epoch
// schedule. Kernel construction stays in code - a plan only shapes the run.
//
// Example:
//
//	seed: 42
//	chains: 4
//	epochs:
//	  - {type: warmup, length: 1000}
//	  - {type: posterior, length: 2000, thin: 2}
type Plan struct {
	Seed   int64       `yaml:"seed"`
	Chains int         `yaml:"chains"`
	Epochs []PlanEpoch `yaml:"epochs"`
}

// PlanEpoch is one epoch entry in a plan file.
type PlanEpoch struct {
	Type   string `yaml:"type"`
	Length int    `yaml:"length"`
	Thin   int    `yaml:"thin"`
}

// DefaultPlan is the schedule used when no plan file is given.
func DefaultPlan() Plan {
	return Plan{
		Seed:   1,
		Chains: 4,
		Epochs: []PlanEpoch{
			{Type: "warmup", Length: 1000},
			{Type: "posterior", Length: 1000, Thin: 1},
		},
	}
}

// ParsePlan reads a plan from YAML bytes and validates the schedule it
// implies.
func ParsePlan(data []byte) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, errors.Wrap(err, "Could not PARSE sampling plan")
	}

	if p.Chains < 1 {
		p.Chains = 1
	}
	if _, err := p.Schedule(); err != nil {
		return p, err
	}

	return p, nil
}

// LoadPlan reads and parses a plan file.
func LoadPlan(filename string) (Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Plan{}, errors.Wrapf(err, "Could not READ sampling plan from %s", filename)
	}
	return ParsePlan(data)
}

// Schedule converts the plan's epoch entries to a validated []Epoch. A
// missing thin defaults to 1.
func (p Plan) Schedule() ([]Epoch, error) {
	out := make([]Epoch, 0, len(p.Epochs))
	for _, pe := range p.Epochs {
		t, err := EpochTypeByName(pe.Type)
		if err != nil {
			return nil, err
		}
		thin := pe.Thin
		if thin == 0 {
			thin = 1
		}
		out = append(out, Epoch{Type: t, Length: pe.Length, Thin: thin})
	}

	if err := CheckSchedule(out); err != nil {
		return nil, errors.Wrap(err, "Plan schedule is invalid")
	}

	return out, nil
}
