package report

import (
	"math"

	"github.com/pkg/errors"

	"github.com/tmoller/quiver/mcmc"
)

// MixingSuite represents the distribution-distance diagnostics we use to
// judge agreement between chains for a single parameter element. Each chain's
// draws are binned into an empirical distribution and all chain pairs are
// compared; Mean* is the average over pairs while Max* is the worst pair.
type MixingSuite struct {
	MeanHellinger float64
	MeanJSDiverge float64

	MaxHellinger float64
	MaxJSDiverge float64
}

// ChainMixing computes the mixing suite for one parameter element across all
// chains in the results, binning draws over the pooled value range.
func ChainMixing(r *mcmc.Results, name string, elem, bins int) (*MixingSuite, error) {
	if r.Chains() < 2 {
		return nil, errors.Errorf("At least 2 chains required for mixing diagnostics")
	}
	if bins < 2 {
		return nil, errors.Errorf("Bin count %d must be >= 2", bins)
	}

	// Pooled range first so every chain is binned identically
	lo, hi := math.Inf(1), math.Inf(-1)
	traces := make([][]float64, r.Chains())
	for c := 0; c < r.Chains(); c++ {
		tr, err := r.Elem(name, c, elem)
		if err != nil {
			return nil, err
		}
		if len(tr) < 1 {
			return nil, errors.Errorf("Chain %d has no draws for %s", c, name)
		}
		traces[c] = tr
		for _, v := range tr {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi <= lo {
		// Degenerate trace: every chain constant at the same value
		return &MixingSuite{}, nil
	}

	hists := make([][]float64, len(traces))
	for c, tr := range traces {
		hists[c] = histProbs(tr, lo, hi, bins)
	}

	suite := MixingSuite{}
	pairs := 0
	for i := 0; i < len(hists); i++ {
		for j := i + 1; j < len(hists); j++ {
			pairs++

			d := HellingerDiff(hists[i], hists[j])
			suite.MeanHellinger += d
			suite.MaxHellinger = math.Max(d, suite.MaxHellinger)

			d = JSDivergence(hists[i], hists[j])
			suite.MeanJSDiverge += d
			suite.MaxJSDiverge = math.Max(d, suite.MaxJSDiverge)
		}
	}

	fp := float64(pairs)
	suite.MeanHellinger /= fp
	suite.MeanJSDiverge /= fp

	return &suite, nil
}

// histProbs bins draws over [lo, hi] into a normalized histogram.
func histProbs(draws []float64, lo, hi float64, bins int) []float64 {
	h := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range draws {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1 // hi lands in the last bin
		}
		if b < 0 {
			b = 0
		}
		h[b]++
	}
	n := float64(len(draws))
	for i := range h {
		h[i] /= n
	}
	return h
}

// HellingerDiff returns the Hellinger distance between two binned prob
// dists. The inputs are normalized defensively since callers may pass raw
// counts.
func HellingerDiff(p1 []float64, p2 []float64) float64 {
	bins := len(p1)

	// get totals for normalizing
	tot1, tot2 := float64(0.0), float64(0.0)
	const eps = 1e-12

	for c := 0; c < bins; c++ {
		tot1 += p1[c]
		tot2 += p2[c]
	}
	if tot1 < eps {
		tot1 = eps
	}
	if tot2 < eps {
		tot2 = eps
	}

	// Hellinger distance is similar to the Euclidean L2:
	// sum((sqrt(p) - sqrt(q))**2) / sqrt(2)
	errSum := float64(0.0)
	for c := 0; c < bins; c++ {
		adjVal1 := math.Sqrt(p1[c] / tot1)
		adjVal2 := math.Sqrt(p2[c] / tot2)
		err := math.Pow(adjVal1-adjVal2, 2) // squared, so always positive
		errSum += err
	}
	return errSum / math.Sqrt2
}

// klDivergence returns the Kullback-Leibler divergence, which is
// non-symmetric! This is strictly a subroutine for JS Divergence, so there
// is no error checking, the bin values are operated on directly, and the
// arrays are assumed normalized (so sum(p1) == sum(p2) == 1.0).
// klDivergence(P, Q) <==> D_{KL}(P || Q)
func klDivergence(v1 []float64, v2 []float64) float64 {
	diverge := float64(0.0)
	for i, p1 := range v1 {
		if p1 <= 0 {
			continue // 0 * log(0) -> 0
		}
		diverge += p1 * math.Log2(p1/v2[i])
	}

	return diverge
}

// JSDivergence returns the Jensen-Shannon divergence, which is a symmetric
// generalization of the KL divergence.
func JSDivergence(p1 []float64, p2 []float64) float64 {
	const eps = float64(1e-12)

	bins := len(p1)

	// get totals for normalizing
	tot1, tot2 := float64(0.0), float64(0.0)
	for c := 0; c < bins; c++ {
		tot1 += p1[c]
		tot2 += p2[c]
	}
	if tot1 < eps {
		tot1 = eps
	}
	if tot2 < eps {
		tot2 = eps
	}

	p1Norm := make([]float64, bins)
	p2Norm := make([]float64, bins)
	mid := make([]float64, bins)
	for i, v := range p1 {
		p1Norm[i] = v / tot1
		p2Norm[i] = p2[i] / tot2
		mid[i] = (p1Norm[i] + p2Norm[i]) * 0.5
	}

	return 0.5 * (klDivergence(p1Norm, mid) + klDivergence(p2Norm, mid))
}
