package mcmc

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/tmoller/quiver/buffer"
	"github.com/tmoller/quiver/graph"
	"github.com/tmoller/quiver/rng"
)

// DefaultWindow is the log-probability window size per chain used for the
// progress diagnostic.
const DefaultWindow = 200

// Config specifies an engine: master seed, parallel chain count, the kernels
// (each bound to a disjoint subset of the model's free parameters, together
// covering all of them), and the epoch schedule.
type Config struct {
	Seed    int64
	Chains  int
	Kernels []Kernel
	Epochs  []Epoch
	Window  int // Diagnostic window size; DefaultWindow when 0
}

// Stats is a point-in-time snapshot of engine progress, consumed by the
// process monitor.
type Stats struct {
	Epoch      int    // Index of the next epoch to run
	EpochType  string // Type of the most recently finished epoch
	Epochs     int    // Total scheduled epochs
	Chains     int
	Steps      int64   // Kernel transitions taken so far (all chains)
	Draws      int64   // Recorded draws so far (all chains)
	Runtime    float64 // Seconds since engine construction
	MaxWindowZ float64 // Worst per-chain log-probability window diagnostic
}

// engChain is the per-chain state: its own model clone, spawned generator,
// kernel copies, and a moving log-probability window.
type engChain struct {
	m       *graph.Model
	gen     *rng.Generator
	kernels []Kernel
	params  []*graph.Node
	hist    *buffer.CircularFloat
}

// Engine runs the configured kernels over the epoch schedule and accumulates
// results. Chains advance in parallel; each one owns its state, so a run is
// reproducible regardless of goroutine scheduling.
type Engine struct {
	model   *graph.Model
	cfg     Config
	chains  []*engChain
	results *Results

	epochIdx int
	start    time.Time
	steps    atomic.Int64
	draws    atomic.Int64

	mu    sync.Mutex
	lastT EpochType
	lastZ float64
	ran   bool
}

// NewEngine validates the configuration, clones the model and kernels per
// chain, and seeds every chain's generator from the master seed.
func NewEngine(m *graph.Model, cfg Config) (*Engine, error) {
	if m == nil {
		return nil, errors.Errorf("No model supplied")
	}
	if cfg.Chains < 1 {
		return nil, errors.Errorf("Chain count %d must be >= 1", cfg.Chains)
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if err := CheckSchedule(cfg.Epochs); err != nil {
		return nil, errors.Wrap(err, "Invalid epoch schedule")
	}
	if err := checkDisjoint(m, cfg.Kernels); err != nil {
		return nil, errors.Wrap(err, "Invalid kernel assignment")
	}

	root, err := rng.NewGenerator(cfg.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "Could not start master generator")
	}
	// The master generator only seeds the spawned ones - its own stream is
	// never drawn from
	defer root.Close()

	names := make([]string, 0, 4)
	dims := make(map[string]int)
	for _, p := range m.Params() {
		names = append(names, p.Name)
		dims[p.Name] = len(p.Val)
	}

	e := &Engine{
		model:   m,
		cfg:     cfg,
		results: newResults(names, dims, cfg.Chains),
		start:   time.Now(),
		lastZ:   math.NaN(),
	}

	for i := 0; i < cfg.Chains; i++ {
		gen, err := root.Spawn(i)
		if err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "Could not spawn generator for chain %d", i)
		}

		ch := &engChain{
			m:    m.Clone(),
			gen:  gen,
			hist: buffer.NewCircularFloat(cfg.Window),
		}
		for _, name := range names {
			n, _ := ch.m.Node(name)
			ch.params = append(ch.params, n)
		}
		e.chains = append(e.chains, ch)

		for _, k := range cfg.Kernels {
			cp := k.Clone()
			if err := cp.Init(ch.m, gen); err != nil {
				e.Close()
				return nil, errors.Wrapf(err, "Could not init kernel on chain %d", i)
			}
			ch.kernels = append(ch.kernels, cp)
		}
	}

	return e, nil
}

// Close stops every chain's random generator. Results stays readable; the
// engine can not sample afterward.
func (e *Engine) Close() {
	for _, ch := range e.chains {
		ch.gen.Close()
	}
}

// Results returns the accumulated draw collection. Safe to read between
// epochs; a concurrent RunNext is not.
func (e *Engine) Results() *Results {
	return e.results
}

// Done is true once every scheduled epoch has run.
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epochIdx >= len(e.cfg.Epochs)
}

// Run executes every remaining epoch in order.
func (e *Engine) Run() error {
	for {
		more, err := e.RunNext()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// RunNext executes the single next epoch across all chains and returns false
// once the schedule is exhausted.
func (e *Engine) RunNext() (bool, error) {
	e.mu.Lock()
	if e.epochIdx >= len(e.cfg.Epochs) {
		e.mu.Unlock()
		return false, nil
	}
	ep := e.cfg.Epochs[e.epochIdx]
	e.mu.Unlock()

	startDraws := e.results.Len()

	var wg sync.WaitGroup
	chainErr := make([]error, len(e.chains))
	for i, ch := range e.chains {
		wg.Add(1)
		go func(idx int, ch *engChain) {
			defer wg.Done()
			chainErr[idx] = e.runChainEpoch(idx, ch, ep)
		}(i, ch)
	}
	wg.Wait()

	for i, err := range chainErr {
		if err != nil {
			return false, errors.Wrapf(err, "Chain %d failed in %s epoch", i, ep.Type)
		}
	}

	e.results.appendSegment(ep.Type, startDraws, e.results.Len())

	e.mu.Lock()
	e.epochIdx++
	e.lastT = ep.Type
	e.ran = true
	worst := 0.0
	for _, ch := range e.chains {
		z := math.Abs(windowZ(ch.hist))
		if math.IsNaN(z) {
			worst = math.NaN()
			break
		}
		if z > worst {
			worst = z
		}
	}
	e.lastZ = worst
	e.mu.Unlock()

	return true, nil
}

// runChainEpoch advances a single chain through one epoch.
func (e *Engine) runChainEpoch(idx int, ch *engChain, ep Epoch) error {
	tuning := ep.Type == Warmup
	record := ep.Type != Warmup

	for i := 0; i < ep.Length; i++ {
		for _, k := range ch.kernels {
			if err := k.Step(tuning); err != nil {
				return errors.Wrap(err, "Kernel step failed")
			}
		}

		lp, err := ch.m.LogProb()
		if err != nil {
			return errors.Wrap(err, "Could not score chain state")
		}
		ch.hist.Add(lp)
		e.steps.Add(1)

		if record && (i+1)%ep.Thin == 0 {
			for _, p := range ch.params {
				e.results.appendDraw(idx, p.Name, p.Val)
			}
			e.draws.Add(1)
		}
	}

	for _, k := range ch.kernels {
		if err := k.EndEpoch(ep.Type); err != nil {
			return errors.Wrap(err, "Kernel end-of-epoch failed")
		}
	}

	return nil
}

// Stats snapshots engine progress for the monitor. Counter fields are safe
// to read while an epoch is running; the window diagnostic updates at epoch
// boundaries.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Epoch:      e.epochIdx,
		Epochs:     len(e.cfg.Epochs),
		Chains:     e.cfg.Chains,
		Steps:      e.steps.Load(),
		Draws:      e.draws.Load(),
		Runtime:    time.Since(e.start).Seconds(),
		MaxWindowZ: e.lastZ,
	}
	if e.ran {
		s.EpochType = e.lastT.String()
	}
	return s
}
