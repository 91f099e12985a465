package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmoller/quiver/mcmc"
)

// startupParams holds everything parsed from the command line plus the
// loggers the subcommands report through.
type startupParams struct {
	verbose     bool
	randomSeed  int64
	chainCount  int
	planFile    string
	monitorAddr string
	plotDir     string

	// Whether seed/chains were given on the command line: a plan file's own
	// values stand unless the flag was explicitly set
	seedSet   bool
	chainsSet bool

	out  *log.Logger // Always-on report output
	verb *log.Logger // Verbose-only output
}

func (sp *startupParams) setup() {
	sp.out = log.New(os.Stdout, "", 0)
	if sp.verbose {
		sp.verb = log.New(os.Stdout, "", 0)
	} else {
		sp.verb = log.New(io.Discard, "", 0)
	}
}

// applyToPlan overlays explicitly-set command line flags on a sampling plan.
// A plan file's seed and chains win unless the matching flag was given.
func (sp *startupParams) applyToPlan(p mcmc.Plan) mcmc.Plan {
	if sp.seedSet {
		p.Seed = sp.randomSeed
	}
	if sp.chainsSet {
		p.Chains = sp.chainCount
	}
	return p
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quiver",
	Short: "Probabilistic graph building and MCMC sampling",
	Long: `quiver builds Bayesian models as graphs of strong/weak nodes and samples
them with an epoch-based MCMC engine. Among other features:

  - Named distributions with node-valued keyword parameters
  - Parameter reparameterization (log, logit) with Jacobian correction
  - NUTS, HMC, IWLS, random-walk, and custom Gibbs kernels
  - Warmup/posterior/terminal epoch schedules with thinning
  - Summary tables, chain-mixing diagnostics, and trace/density/ACF plots
`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sp := &startupParams{}

	rootCmd.PersistentFlags().BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	rootCmd.PersistentFlags().Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed to use")
	rootCmd.PersistentFlags().IntVarP(&sp.chainCount, "chains", "c", 4, "Number of parallel chains")
	rootCmd.PersistentFlags().StringVarP(&sp.planFile, "plan", "p", "", "YAML sampling plan file (default is warmup 1000 / posterior 1000)")
	rootCmd.PersistentFlags().StringVarP(&sp.monitorAddr, "monitor", "m", "", "Address for the HTTP progress monitor (e.g. :8000)")
	rootCmd.PersistentFlags().StringVarP(&sp.plotDir, "plots", "o", "", "Directory for trace/density/ACF plots (skipped if empty)")

	rootCmd.AddCommand(demoCommand(sp))

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
