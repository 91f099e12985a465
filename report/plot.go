package report

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/tmoller/quiver/mcmc"
)

const (
	plotW = 6 * vg.Inch
	plotH = 4 * vg.Inch
)

// TracePlot writes a per-chain trace plot for one parameter element. The
// output format follows the file extension (png, svg, pdf, ...).
func TracePlot(r *mcmc.Results, name string, elem int, filename string) error {
	p := plot.New()
	p.Title.Text = name + " trace"
	p.X.Label.Text = "draw"
	p.Y.Label.Text = name

	for c := 0; c < r.Chains(); c++ {
		tr, err := r.Elem(name, c, elem)
		if err != nil {
			return errors.Wrapf(err, "Could not read trace for %s", name)
		}

		xys := make(plotter.XYs, len(tr))
		for i, v := range tr {
			xys[i].X = float64(i)
			xys[i].Y = v
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, "Could not build trace line")
		}
		line.Color = plotutil.Color(c)
		p.Add(line)
	}

	return errors.Wrapf(p.Save(plotW, plotH, filename), "Could not save trace plot %s", filename)
}

// DensityPlot writes a Gaussian kernel density estimate of the pooled draws
// for one parameter element, using Silverman's bandwidth rule.
func DensityPlot(r *mcmc.Results, name string, elem int, filename string) error {
	flat, err := r.Flat(name, elem)
	if err != nil {
		return errors.Wrapf(err, "Could not read draws for %s", name)
	}
	if len(flat) < 4 {
		return errors.Errorf("Not enough draws for a density of %s", name)
	}

	sd := stat.StdDev(flat, nil)
	if sd < 1e-12 {
		return errors.Errorf("Draws for %s are constant - no density to plot", name)
	}
	bw := 1.06 * sd * math.Pow(float64(len(flat)), -0.2)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range flat {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo -= 3 * bw
	hi += 3 * bw

	const gridN = 200
	xys := make(plotter.XYs, gridN)
	step := (hi - lo) / (gridN - 1)
	norm := 1.0 / (float64(len(flat)) * bw * math.Sqrt(2*math.Pi))
	for i := 0; i < gridN; i++ {
		x := lo + float64(i)*step
		dens := 0.0
		for _, v := range flat {
			z := (x - v) / bw
			dens += math.Exp(-0.5 * z * z)
		}
		xys[i].X = x
		xys[i].Y = dens * norm
	}

	p := plot.New()
	p.Title.Text = name + " density"
	p.X.Label.Text = name
	p.Y.Label.Text = "density"

	line, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrap(err, "Could not build density line")
	}
	line.Color = plotutil.Color(0)
	p.Add(line)

	return errors.Wrapf(p.Save(plotW, plotH, filename), "Could not save density plot %s", filename)
}

// ACFPlot writes the autocorrelation function of chain 0 for one parameter
// element as a bar chart up to maxLag.
func ACFPlot(r *mcmc.Results, name string, elem, maxLag int, filename string) error {
	tr, err := r.Elem(name, 0, elem)
	if err != nil {
		return errors.Wrapf(err, "Could not read trace for %s", name)
	}
	if maxLag < 1 || maxLag >= len(tr) {
		return errors.Errorf("Max lag %d out of range for %d draws", maxLag, len(tr))
	}

	m := stat.Mean(tr, nil)
	v := stat.Variance(tr, nil)
	if v < 1e-300 {
		return errors.Errorf("Draws for %s are constant - no ACF to plot", name)
	}

	vals := make(plotter.Values, maxLag+1)
	vals[0] = 1
	for lag := 1; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i+lag < len(tr); i++ {
			sum += (tr[i] - m) * (tr[i+lag] - m)
		}
		vals[lag] = sum / (float64(len(tr)-lag) * v)
	}

	p := plot.New()
	p.Title.Text = name + " autocorrelation"
	p.X.Label.Text = "lag"
	p.Y.Label.Text = "acf"

	bars, err := plotter.NewBarChart(vals, vg.Points(3))
	if err != nil {
		return errors.Wrap(err, "Could not build ACF bars")
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	p.Add(bars)

	return errors.Wrapf(p.Save(plotW, plotH, filename), "Could not save ACF plot %s", filename)
}
