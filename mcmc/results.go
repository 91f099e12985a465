package mcmc

import (
	"github.com/pkg/errors"
)

// Segment records which recorded draw indices came from which epoch.
type Segment struct {
	Type  EpochType
	Start int // First recorded draw index (inclusive)
	End   int // Past-the-end draw index
}

// Results is the accumulated, queryable draw collection of an engine run,
// keyed by parameter name. Draws are stored per chain in recording order;
// warmup draws never appear here.
type Results struct {
	names  []string
	dims   map[string]int
	chains int
	draws  map[string][][][]float64 // name -> chain -> draw -> element
	segs   []Segment
}

func newResults(names []string, dims map[string]int, chains int) *Results {
	r := &Results{
		names:  names,
		dims:   dims,
		chains: chains,
		draws:  make(map[string][][][]float64, len(names)),
	}
	for _, n := range names {
		r.draws[n] = make([][][]float64, chains)
	}
	return r
}

// appendDraw adds one recorded draw for a chain.
func (r *Results) appendDraw(chain int, name string, vals []float64) {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	r.draws[name][chain] = append(r.draws[name][chain], cp)
}

// appendSegment records the draw range contributed by one epoch.
func (r *Results) appendSegment(t EpochType, start, end int) {
	if end > start {
		r.segs = append(r.segs, Segment{Type: t, Start: start, End: end})
	}
}

// Names lists the recorded parameters in model order.
func (r *Results) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Chains is the number of parallel chains recorded.
func (r *Results) Chains() int {
	return r.chains
}

// Dim returns the element count of the named parameter.
func (r *Results) Dim(name string) (int, error) {
	d, ok := r.dims[name]
	if !ok {
		return 0, errors.Errorf("No recorded parameter %s", name)
	}
	return d, nil
}

// Len is the number of recorded draws per chain.
func (r *Results) Len() int {
	if len(r.names) < 1 {
		return 0
	}
	ch := r.draws[r.names[0]]
	if len(ch) < 1 {
		return 0
	}
	return len(ch[0])
}

// Segments returns the epoch provenance of the recorded draws.
func (r *Results) Segments() []Segment {
	out := make([]Segment, len(r.segs))
	copy(out, r.segs)
	return out
}

// Chain returns the named parameter's draws for one chain: one row per
// recorded draw. The returned slices are live - callers must not mutate.
func (r *Results) Chain(name string, chain int) ([][]float64, error) {
	d, ok := r.draws[name]
	if !ok {
		return nil, errors.Errorf("No recorded parameter %s", name)
	}
	if chain < 0 || chain >= r.chains {
		return nil, errors.Errorf("Chain %d out of range [0, %d)", chain, r.chains)
	}
	return d[chain], nil
}

// Elem returns a single element's trace for one chain.
func (r *Results) Elem(name string, chain, elem int) ([]float64, error) {
	draws, err := r.Chain(name, chain)
	if err != nil {
		return nil, err
	}

	dim := r.dims[name]
	if elem < 0 || elem >= dim {
		return nil, errors.Errorf("Element %d out of range for %s (dim %d)", elem, name, dim)
	}

	out := make([]float64, len(draws))
	for i, d := range draws {
		out[i] = d[elem]
	}
	return out, nil
}

// Flat concatenates a single element's draws across all chains.
func (r *Results) Flat(name string, elem int) ([]float64, error) {
	out := make([]float64, 0, r.Len()*r.chains)
	for c := 0; c < r.chains; c++ {
		tr, err := r.Elem(name, c, elem)
		if err != nil {
			return nil, err
		}
		out = append(out, tr...)
	}
	return out, nil
}
