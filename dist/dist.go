// Package dist provides the named probability distributions that graph nodes
// can carry. Scalar densities come from gonum's distuv; this package adds the
// keyword registry, elementwise evaluation over value vectors, and
// scalar-or-vector parameter broadcasting.
package dist

import (
	"math"

	"github.com/pkg/errors"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Params holds keyword arguments for a distribution. Each argument is a
// vector: length 1 (broadcast to every element) or the length of the value
// vector being scored.
type Params map[string][]float64

// scalarDist is the part of gonum's distuv types we rely on.
type scalarDist interface {
	LogProb(x float64) float64
	Rand() float64
}

// spec describes one registered distribution: its keyword order, a support
// check on the (broadcast) arguments, and a constructor for the scalar
// density. Arguments arrive in keyword order.
type spec struct {
	keywords []string
	ok       func(args []float64) bool
	build    func(args []float64, src xrand.Source) scalarDist
}

var registry = map[string]spec{
	"Normal": {
		keywords: []string{"loc", "scale"},
		ok:       func(a []float64) bool { return a[1] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Normal{Mu: a[0], Sigma: a[1], Src: src}
		},
	},
	"LogNormal": {
		keywords: []string{"loc", "scale"},
		ok:       func(a []float64) bool { return a[1] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.LogNormal{Mu: a[0], Sigma: a[1], Src: src}
		},
	},
	"StudentsT": {
		keywords: []string{"df", "loc", "scale"},
		ok:       func(a []float64) bool { return a[0] > 0 && a[2] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.StudentsT{Nu: a[0], Mu: a[1], Sigma: a[2], Src: src}
		},
	},
	"Gamma": {
		keywords: []string{"shape", "rate"},
		ok:       func(a []float64) bool { return a[0] > 0 && a[1] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Gamma{Alpha: a[0], Beta: a[1], Src: src}
		},
	},
	"Beta": {
		keywords: []string{"alpha", "beta"},
		ok:       func(a []float64) bool { return a[0] > 0 && a[1] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Beta{Alpha: a[0], Beta: a[1], Src: src}
		},
	},
	"Exponential": {
		keywords: []string{"rate"},
		ok:       func(a []float64) bool { return a[0] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Exponential{Rate: a[0], Src: src}
		},
	},
	"Uniform": {
		keywords: []string{"low", "high"},
		ok:       func(a []float64) bool { return a[0] < a[1] },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Uniform{Min: a[0], Max: a[1], Src: src}
		},
	},
	"Poisson": {
		keywords: []string{"rate"},
		ok:       func(a []float64) bool { return a[0] > 0 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Poisson{Lambda: a[0], Src: src}
		},
	},
	"Bernoulli": {
		keywords: []string{"prob"},
		ok:       func(a []float64) bool { return a[0] >= 0 && a[0] <= 1 },
		build: func(a []float64, src xrand.Source) scalarDist {
			return distuv.Bernoulli{P: a[0], Src: src}
		},
	},
}

// Names returns every registered distribution identifier (unordered).
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}

// Keywords returns the keyword list for a distribution identifier.
func Keywords(name string) ([]string, error) {
	s, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("Unknown distribution %s", name)
	}
	return s.keywords, nil
}

// Validate checks a distribution identifier and the exact keyword set supplied
// for it. Extra and missing keywords are both errors.
func Validate(name string, keywords []string) error {
	s, ok := registry[name]
	if !ok {
		return errors.Errorf("Unknown distribution %s", name)
	}

	if len(keywords) != len(s.keywords) {
		return errors.Errorf("Distribution %s needs %d keywords, got %d", name, len(s.keywords), len(keywords))
	}

	have := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		have[k] = true
	}
	for _, k := range s.keywords {
		if !have[k] {
			return errors.Errorf("Distribution %s is missing keyword %q", name, k)
		}
	}

	return nil
}

// broadcast returns element i of a parameter vector with length-1 broadcast.
func broadcast(p []float64, i int) float64 {
	if len(p) == 1 {
		return p[0]
	}
	return p[i]
}

// gather resolves the keyword params for element i into keyword order.
func (s spec) gather(p Params, i int, dst []float64) error {
	for j, k := range s.keywords {
		arg, ok := p[k]
		if !ok {
			return errors.Errorf("Missing keyword %q", k)
		}
		dst[j] = broadcast(arg, i)
	}
	return nil
}

// checkLens insures every parameter is scalar or matches the value length.
func checkLens(name string, s spec, p Params, n int) error {
	for _, k := range s.keywords {
		arg, ok := p[k]
		if !ok {
			return errors.Errorf("Distribution %s is missing keyword %q", name, k)
		}
		if len(arg) != 1 && len(arg) != n {
			return errors.Errorf("Distribution %s keyword %q has len %d, want 1 or %d", name, k, len(arg), n)
		}
	}
	return nil
}

// LogProb returns the summed elementwise log density of x under the named
// distribution. Parameters outside the distribution's support (for example a
// scale of exactly zero) yield -Inf rather than an error or a panic: samplers
// treat that as a rejected region.
func LogProb(name string, p Params, x []float64) (float64, error) {
	s, ok := registry[name]
	if !ok {
		return 0, errors.Errorf("Unknown distribution %s", name)
	}
	if len(x) < 1 {
		return 0, errors.Errorf("Distribution %s scored against an empty value", name)
	}
	if err := checkLens(name, s, p, len(x)); err != nil {
		return 0, err
	}

	args := make([]float64, len(s.keywords))
	total := 0.0
	for i := range x {
		if err := s.gather(p, i, args); err != nil {
			return 0, err
		}
		if !s.ok(args) {
			return math.Inf(-1), nil
		}
		total += s.build(args, nil).LogProb(x[i])
	}

	return total, nil
}

// Rand draws n values from the named distribution using the supplied source.
// Parameters are broadcast against n the same way LogProb broadcasts against
// the value vector.
func Rand(name string, p Params, src xrand.Source, n int) ([]float64, error) {
	s, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("Unknown distribution %s", name)
	}
	if n < 1 {
		return nil, errors.Errorf("Invalid draw count %d", n)
	}
	if err := checkLens(name, s, p, n); err != nil {
		return nil, err
	}

	args := make([]float64, len(s.keywords))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if err := s.gather(p, i, args); err != nil {
			return nil, err
		}
		if !s.ok(args) {
			return nil, errors.Errorf("Distribution %s has parameters outside its support", name)
		}
		out[i] = s.build(args, src).Rand()
	}

	return out, nil
}
