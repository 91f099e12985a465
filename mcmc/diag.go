package mcmc

import (
	"math"

	"github.com/tmoller/quiver/buffer"
)

// windowZ is a Geweke-style diagnostic on a chain's recent log-probability
// window: the standardized difference between the means of the older and
// newer halves of the circular buffer. Near zero once the chain has settled;
// NaN until the window has filled.
func windowZ(c *buffer.CircularFloat) float64 {
	first := c.FirstHalf()
	second := c.SecondHalf()
	if first == nil || second == nil {
		return math.NaN()
	}

	m1, v1, n1 := iterMoments(first)
	m2, v2, n2 := iterMoments(second)
	if n1 < 2 || n2 < 2 {
		return math.NaN()
	}

	se := math.Sqrt(v1/float64(n1) + v2/float64(n2))
	if se < 1e-12 {
		return 0
	}
	return (m2 - m1) / se
}

// iterMoments consumes an iterator and returns sample mean, variance, count.
func iterMoments(it *buffer.CircularFloatIterator) (mean, variance float64, n int) {
	var m, m2 float64
	for it.Next() {
		v := it.Value()
		n++
		d := v - m
		m += d / float64(n)
		m2 += d * (v - m)
	}
	if n > 1 {
		variance = m2 / float64(n-1)
	}
	return m, variance, n
}
