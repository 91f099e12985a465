package cmd

import (
	"expvar"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/tmoller/quiver/mcmc"
)

// monitor publishes engine progress over HTTP via expvar.
type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	ticker  *time.Ticker
	server  *http.Server

	Epoch      *expvar.Int
	EpochCount *expvar.Int
	EpochType  *expvar.String
	ChainCount *expvar.Int
	TotalSteps *expvar.Int
	TotalDraws *expvar.Int
	RunTime    *expvar.Float
	MaxWindowZ *expvar.Float
}

// Start begins the monitor, polling the engine's stats until Stop.
func (m *monitor) Start(addr string, eng *mcmc.Engine) error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.info = expvar.NewMap("quiver-progress")
	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr: addr,
	}

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.Epoch = expvar.NewInt("Epoch")
	m.EpochCount = expvar.NewInt("Epoch-Count")
	m.EpochType = expvar.NewString("Epoch-Type")
	m.ChainCount = expvar.NewInt("Chain-Count")
	m.TotalSteps = expvar.NewInt("Total-Steps")
	m.TotalDraws = expvar.NewInt("Total-Draws")
	m.RunTime = expvar.NewFloat("Run-Time")
	m.MaxWindowZ = expvar.NewFloat("Max-Window-Z")

	m.ticker = time.NewTicker(250 * time.Millisecond)
	go func() {
		for range m.ticker.C {
			m.publish(eng.Stats())
		}
	}()

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

func (m *monitor) publish(s mcmc.Stats) {
	m.Epoch.Set(int64(s.Epoch))
	m.EpochCount.Set(int64(s.Epochs))
	m.EpochType.Set(s.EpochType)
	m.ChainCount.Set(int64(s.Chains))
	m.TotalSteps.Set(s.Steps)
	m.TotalDraws.Set(s.Draws)
	m.RunTime.Set(s.Runtime)
	if !math.IsNaN(s.MaxWindowZ) {
		m.MaxWindowZ.Set(s.MaxWindowZ)
	}
}

func (m *monitor) Stop() {
	if m.info == nil {
		return
	}

	m.ticker.Stop()
	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
