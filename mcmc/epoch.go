// Package mcmc orchestrates sampling kernels over a probabilistic graph:
// epoch scheduling (warmup, posterior, terminal), parallel chains, and
// result bookkeeping keyed by parameter name.
package mcmc

import (
	"github.com/pkg/errors"
)

// EpochType labels a phase of sampling.
type EpochType int

// Epoch type constants. Warmup draws feed kernel adaptation and are
// discarded; posterior and terminal draws are recorded.
const (
	Warmup EpochType = iota
	Posterior
	Terminal
)

func (t EpochType) String() string {
	switch t {
	case Warmup:
		return "warmup"
	case Posterior:
		return "posterior"
	case Terminal:
		return "terminal"
	}
	return "unknown"
}

// EpochTypeByName maps a plan-file label back to its EpochType.
func EpochTypeByName(name string) (EpochType, error) {
	switch name {
	case "warmup":
		return Warmup, nil
	case "posterior":
		return Posterior, nil
	case "terminal":
		return Terminal, nil
	}
	return 0, errors.Errorf("Unknown epoch type %q", name)
}

// Epoch is one labeled phase of sampling with its own duration and thinning.
type Epoch struct {
	Type   EpochType
	Length int // Number of transitions
	Thin   int // Keep every Thin'th draw (recorded epochs only)
}

// Check returns an error if there is a problem with the epoch
func (e Epoch) Check() error {
	if e.Type < Warmup || e.Type > Terminal {
		return errors.Errorf("Invalid epoch type %d", int(e.Type))
	}
	if e.Length < 1 {
		return errors.Errorf("Epoch length %d must be >= 1", e.Length)
	}
	if e.Thin < 1 {
		return errors.Errorf("Epoch thinning %d must be >= 1", e.Thin)
	}
	if e.Type == Warmup && e.Thin != 1 {
		return errors.Errorf("Warmup epochs can not thin (got %d) - their draws are never kept", e.Thin)
	}
	return nil
}

// CheckSchedule validates a full epoch sequence: every warmup epoch precedes
// every posterior epoch, and at most one terminal epoch sits at the end.
func CheckSchedule(epochs []Epoch) error {
	if len(epochs) < 1 {
		return errors.Errorf("Empty epoch schedule")
	}

	seenPosterior := false
	for i, e := range epochs {
		if err := e.Check(); err != nil {
			return errors.Wrapf(err, "Epoch %d is invalid", i)
		}

		switch e.Type {
		case Warmup:
			if seenPosterior {
				return errors.Errorf("Epoch %d: warmup epochs must precede all posterior epochs", i)
			}
		case Posterior:
			seenPosterior = true
		case Terminal:
			if i != len(epochs)-1 {
				return errors.Errorf("Epoch %d: a terminal epoch must be the final epoch", i)
			}
		}
	}

	return nil
}
