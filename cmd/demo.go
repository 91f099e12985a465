package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tmoller/quiver/dist"
	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/mcmc"
	"github.com/tmoller/quiver/report"
	"github.com/tmoller/quiver/rng"
)

// True values behind the simulated demo data, reported next to the
// estimates so the output is easy to eyeball.
const (
	demoN     = 120
	demoB0    = 1.2
	demoB1    = -0.7
	demoSigma = 0.4
)

func demoCommand(sp *startupParams) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a built-in Bayesian linear regression end to end",
		Long: `demo simulates a small regression data set, builds the model graph with a
log-reparameterized scale parameter, samples it with NUTS + IWLS kernels, and
prints the posterior summary. Useful as a smoke test and as example code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sp.seedSet = cmd.Flags().Changed("seed")
			sp.chainsSet = cmd.Flags().Changed("chains")
			sp.setup()
			return runDemo(sp)
		},
	}
}

// demoData simulates covariate and response vectors for the regression.
func demoData(gen *rng.Generator) (xs, ys []float64) {
	unif := distuv.Uniform{Min: -2, Max: 2, Src: gen}
	noise := distuv.Normal{Mu: 0, Sigma: demoSigma, Src: gen}

	xs = make([]float64, demoN)
	ys = make([]float64, demoN)
	for i := range xs {
		xs[i] = unif.Rand()
		ys[i] = demoB0 + demoB1*xs[i] + noise.Rand()
	}
	return xs, ys
}

// demoModel builds the regression graph: beta ~ Normal, sigma ~ Exponential,
// y ~ Normal(beta0 + beta1*x, sigma).
func demoModel(xs, ys []float64) (*graph.Model, error) {
	beta := graph.Param("beta", 0, 0).SetDist("Normal", map[string]*graph.Node{
		"loc":   graph.Hyper("beta_loc", 0),
		"scale": graph.Hyper("beta_scale", 10),
	})
	sigma := graph.Param("sigma", 1).SetDist("Exponential", map[string]*graph.Node{
		"rate": graph.Hyper("sigma_rate", 1),
	})

	x := graph.Covariate("x", xs...)
	mu := graph.Weak("mu", func(inputs ...[]float64) []float64 {
		b, xv := inputs[0], inputs[1]
		out := make([]float64, len(xv))
		for i, v := range xv {
			out[i] = b[0] + b[1]*v
		}
		return out
	}, beta, x)

	y := graph.Covariate("y", ys...).SetDist("Normal", map[string]*graph.Node{
		"loc":   mu,
		"scale": sigma,
	})

	return graph.NewModel("demo-regression", y)
}

func runDemo(sp *startupParams) error {
	sp.out.Printf("quiver demo: linear regression with %d observations", demoN)
	sp.out.Printf("True values: beta0=%.2f beta1=%.2f sigma=%.2f", demoB0, demoB1, demoSigma)

	plan := mcmc.DefaultPlan()
	if sp.planFile != "" {
		var err error
		plan, err = mcmc.LoadPlan(sp.planFile)
		if err != nil {
			return err
		}
	}
	plan = sp.applyToPlan(plan)

	epochs, err := plan.Schedule()
	if err != nil {
		return err
	}

	dataGen, err := rng.NewGenerator(plan.Seed)
	if err != nil {
		return err
	}
	xs, ys := demoData(dataGen)
	dataGen.Close()

	mod, err := demoModel(xs, ys)
	if err != nil {
		return errors.Wrap(err, "Could not build demo model")
	}
	sp.verb.Printf("Model %s has %d nodes, %d free parameters", mod.Name, len(mod.Nodes), len(mod.Params()))

	// Sample sigma on the log scale so the gradient kernels never see the
	// positivity boundary.
	mod, err = graph.TransformParameter(mod, "sigma", dist.LogTransform{})
	if err != nil {
		return errors.Wrap(err, "Could not reparameterize sigma")
	}

	eng, err := mcmc.NewEngine(mod, mcmc.Config{
		Seed:   plan.Seed,
		Chains: plan.Chains,
		Kernels: []mcmc.Kernel{
			mcmc.NewNUTS("beta"),
			mcmc.NewIWLS("sigma_transformed"),
		},
		Epochs: epochs,
	})
	if err != nil {
		return errors.Wrap(err, "Could not configure engine")
	}
	defer eng.Close()

	if sp.monitorAddr != "" {
		mon := &monitor{}
		if err := mon.Start(sp.monitorAddr, eng); err != nil {
			return err
		}
		defer mon.Stop()
	}

	for i := 0; ; i++ {
		more, err := eng.RunNext()
		if err != nil {
			return errors.Wrap(err, "Sampling failed")
		}
		if !more {
			break
		}
		st := eng.Stats()
		sp.verb.Printf(
			"Epoch %d/%d (%s) done: steps=%d draws=%d runtime=%.1fs windowZ=%.3f",
			st.Epoch, st.Epochs, st.EpochType, st.Steps, st.Draws, st.Runtime, st.MaxWindowZ,
		)
	}

	res := eng.Results()
	sp.out.Printf("Recorded %d draws per chain across %d chains", res.Len(), res.Chains())

	rows, err := report.Summarize(res, 0.95)
	if err != nil {
		return errors.Wrap(err, "Could not summarize results")
	}

	var buf bytes.Buffer
	report.Render(&buf, rows)
	sp.out.Printf("\n%s", buf.String())

	if res.Chains() >= 2 {
		for _, name := range res.Names() {
			dim, err := res.Dim(name)
			if err != nil {
				return err
			}
			for el := 0; el < dim; el++ {
				mix, err := report.ChainMixing(res, name, el, 20)
				if err != nil {
					return errors.Wrapf(err, "Mixing check failed for %s", name)
				}
				sp.out.Printf(
					"%-24s Mixing | MeanHel:%7.4f MaxHel:%7.4f MeanJSD:%7.4f MaxJSD:%7.4f",
					fmt.Sprintf("%s[%d]", name, el),
					mix.MeanHellinger, mix.MaxHellinger, mix.MeanJSDiverge, mix.MaxJSDiverge,
				)
			}
		}
	}

	if sp.plotDir != "" {
		if err := writePlots(sp, res); err != nil {
			return err
		}
	}

	return nil
}

// writePlots renders trace, density, and ACF plots for every recorded
// parameter element.
func writePlots(sp *startupParams, res *mcmc.Results) error {
	for _, name := range res.Names() {
		dim, err := res.Dim(name)
		if err != nil {
			return err
		}
		for el := 0; el < dim; el++ {
			base := fmt.Sprintf("%s_%d", name, el)

			f := filepath.Join(sp.plotDir, base+"_trace.png")
			if err := report.TracePlot(res, name, el, f); err != nil {
				return err
			}
			f = filepath.Join(sp.plotDir, base+"_density.png")
			if err := report.DensityPlot(res, name, el, f); err != nil {
				return err
			}
			f = filepath.Join(sp.plotDir, base+"_acf.png")
			if err := report.ACFPlot(res, name, el, min(40, res.Len()-1), f); err != nil {
				return err
			}
			sp.verb.Printf("Wrote plots for %s[%d] to %s", name, el, sp.plotDir)
		}
	}
	return nil
}
