// Package report turns engine results into summary tables, mixing
// diagnostics, and plots.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/tmoller/quiver/mcmc"
)

// ParamSummary holds the posterior summary for one element of one parameter.
type ParamSummary struct {
	Name string
	Elem int

	Mean float64
	SD   float64
	Lo   float64 // Lower credible bound
	Hi   float64 // Upper credible bound
	ESS  float64 // Effective sample size
	Rhat float64 // Split Gelman-Rubin diagnostic
}

// Summarize computes per-element summaries for every recorded parameter.
// prob is the central credible mass (e.g. 0.95).
func Summarize(r *mcmc.Results, prob float64) ([]ParamSummary, error) {
	if r == nil || r.Len() < 4 {
		return nil, errors.Errorf("Not enough recorded draws to summarize")
	}
	if prob <= 0 || prob >= 1 {
		return nil, errors.Errorf("Credible mass %f must be in (0, 1)", prob)
	}

	out := make([]ParamSummary, 0, 8)
	for _, name := range r.Names() {
		dim, err := r.Dim(name)
		if err != nil {
			return nil, err
		}

		for el := 0; el < dim; el++ {
			chains := make([][]float64, r.Chains())
			for c := 0; c < r.Chains(); c++ {
				tr, err := r.Elem(name, c, el)
				if err != nil {
					return nil, err
				}
				chains[c] = tr
			}

			flat, err := r.Flat(name, el)
			if err != nil {
				return nil, err
			}

			sorted := make([]float64, len(flat))
			copy(sorted, flat)
			sort.Float64s(sorted)

			tail := (1 - prob) / 2
			s := ParamSummary{
				Name: name,
				Elem: el,
				Mean: stat.Mean(flat, nil),
				SD:   stat.StdDev(flat, nil),
				Lo:   stat.Quantile(tail, stat.Empirical, sorted, nil),
				Hi:   stat.Quantile(1-tail, stat.Empirical, sorted, nil),
				ESS:  EffectiveSize(chains),
				Rhat: SplitRhat(chains),
			}
			out = append(out, s)
		}
	}

	return out, nil
}

// EffectiveSize estimates the effective sample size of a multi-chain trace
// using Geyer's initial monotone positive sequence on the chain-averaged
// autocorrelations.
func EffectiveSize(chains [][]float64) float64 {
	c := len(chains)
	if c < 1 || len(chains[0]) < 4 {
		return math.NaN()
	}
	n := len(chains[0])

	// Average autocorrelation across chains, each computed against its own
	// mean and variance.
	maxLag := n / 2
	rho := make([]float64, maxLag)
	valid := 0
	for _, ch := range chains {
		m := stat.Mean(ch, nil)
		v := stat.Variance(ch, nil)
		if v < 1e-300 {
			continue
		}
		valid++
		for lag := 1; lag < maxLag; lag++ {
			sum := 0.0
			for i := 0; i+lag < n; i++ {
				sum += (ch[i] - m) * (ch[i+lag] - m)
			}
			rho[lag] += sum / (float64(n-lag) * v)
		}
	}
	if valid < 1 {
		return math.NaN()
	}
	for lag := 1; lag < maxLag; lag++ {
		rho[lag] /= float64(valid)
	}

	// Geyer: sum consecutive-pair autocorrelations while the pair sums stay
	// positive and non-increasing.
	tau := 1.0
	prev := math.Inf(1)
	for lag := 1; lag+1 < maxLag; lag += 2 {
		pair := rho[lag] + rho[lag+1]
		if pair <= 0 {
			break
		}
		if pair > prev {
			pair = prev
		}
		prev = pair
		tau += 2 * pair
	}

	return float64(c*n) / tau
}

// SplitRhat is the split Gelman-Rubin potential scale reduction: each chain
// is split in half and the usual between/within variance ratio is computed
// over the 2C half-chains. Values near 1 indicate the chains agree.
func SplitRhat(chains [][]float64) float64 {
	if len(chains) < 1 || len(chains[0]) < 4 {
		return math.NaN()
	}

	halves := make([][]float64, 0, 2*len(chains))
	for _, ch := range chains {
		h := len(ch) / 2
		halves = append(halves, ch[:h], ch[h:h*2])
	}

	m := float64(len(halves))
	n := float64(len(halves[0]))

	means := make([]float64, len(halves))
	w := 0.0
	for i, h := range halves {
		means[i] = stat.Mean(h, nil)
		w += stat.Variance(h, nil)
	}
	w /= m

	grand := stat.Mean(means, nil)
	b := 0.0
	for _, mu := range means {
		b += (mu - grand) * (mu - grand)
	}
	b *= n / (m - 1)

	if w < 1e-300 {
		return math.NaN()
	}

	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// Render writes the summaries as a fixed-width table.
func Render(w io.Writer, rows []ParamSummary) {
	fmt.Fprintf(w, "%-24s %10s %10s %10s %10s %9s %7s\n",
		"Parameter", "Mean", "SD", "Lo", "Hi", "ESS", "Rhat")

	for _, r := range rows {
		name := r.Name
		if r.Elem > 0 || multiElem(rows, r.Name) {
			name = fmt.Sprintf("%s[%d]", r.Name, r.Elem)
		}
		fmt.Fprintf(w, "%-24s %10.4f %10.4f %10.4f %10.4f %9.1f %7.3f\n",
			name, r.Mean, r.SD, r.Lo, r.Hi, r.ESS, r.Rhat)
	}
}

func multiElem(rows []ParamSummary, name string) bool {
	count := 0
	for _, r := range rows {
		if r.Name == name {
			count++
		}
	}
	return count > 1
}
