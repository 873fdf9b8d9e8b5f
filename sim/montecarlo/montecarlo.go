// Package montecarlo runs independent replications of one configuration in
// parallel and aggregates their KPIs.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stochastix-twin/twin-sim/sim"
	"github.com/stochastix-twin/twin-sim/sim/trace"
)

// MaxReplications bounds the replication count of one job.
const MaxReplications = 2000

// Outcome types.
const (
	TypeSingle     = "single"
	TypeMonteCarlo = "monte_carlo"
)

// ProgressReporter receives the number of finished replications. It is only
// called from the aggregating goroutine, with strictly increasing counts below
// total; completion is signalled by Run returning.
type ProgressReporter interface {
	ReportProgress(completed, total int)
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(completed, total int)

// ReportProgress calls f.
func (f ProgressFunc) ReportProgress(completed, total int) { f(completed, total) }

// Options tune a Run. The zero value is valid.
type Options struct {
	// Workers bounds concurrent replications. <= 0 means GOMAXPROCS.
	Workers int
	// KeepSamples adds every replication's KPISet to a Monte Carlo outcome.
	KeepSamples bool
	// TraceSummary attaches an order trace summary to the single-run outcome
	// and to each kept sample.
	TraceSummary bool
	Progress     ProgressReporter
}

// Sample is the KPISet of one Monte Carlo replication.
type Sample struct {
	Replication  int                 `json:"replication"`
	Seed         int64               `json:"seed"`
	KPIs         sim.KPISet          `json:"kpis"`
	TraceSummary *trace.TraceSummary `json:"trace_summary,omitempty"`
}

// Outcome is the result of a job: the KPIs and timeseries of a single run, or
// the summary of a Monte Carlo run.
type Outcome struct {
	Type     string `json:"type"`
	BaseSeed int64  `json:"base_seed"`

	KPIs         *sim.KPISet         `json:"kpis,omitempty"`
	Timeseries   []sim.DayRecord     `json:"timeseries,omitempty"`
	TraceSummary *trace.TraceSummary `json:"trace_summary,omitempty"`

	Summary *Summary `json:"summary,omitempty"`
	Samples []Sample `json:"samples,omitempty"`
}

type replicationResult struct {
	index  int
	seed   int64
	result *sim.Result
	err    error
}

// replicate runs one replication. Tests replace it to inject faults.
var replicate = runReplication

// Run executes replications of cfg. One replication yields a single-run
// outcome; more yield a Monte Carlo summary.
//
// Replications run on a bounded worker pool and report to a single aggregator
// that stores results by replication index, so the outcome does not depend on
// completion order or worker count. The first fault cancels the remaining
// replications and is returned; a cancelled ctx returns sim.ErrCancelled.
func Run(ctx context.Context, cfg sim.SimulationConfig, replications int, opts Options) (*Outcome, error) {
	if replications < 1 || replications > MaxReplications {
		return nil, &sim.ConfigurationError{
			Field:  "replications",
			Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxReplications, replications),
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := BaseSeed(cfg)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, replications)
	logrus.Infof("running %d replication(s) of %d days on %d worker(s), base seed %d",
		replications, cfg.Days, workers, base)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	indices := make(chan int)
	results := make(chan replicationResult)

	go func() {
		defer close(indices)
		for i := 0; i < replications; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				results <- replicate(ctx, cfg, base, i)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Aggregator: the only goroutine touching runs.
	runs := make([]replicationResult, replications)
	completed := 0
	var runErr error
	for r := range results {
		if r.err != nil {
			if runErr == nil || (errors.Is(runErr, sim.ErrCancelled) && !errors.Is(r.err, sim.ErrCancelled)) {
				runErr = r.err
			}
			cancel()
			continue
		}
		runs[r.index] = r
		completed++
		if completed < replications && opts.Progress != nil {
			opts.Progress.ReportProgress(completed, replications)
		}
	}
	if runErr != nil {
		if !errors.Is(runErr, sim.ErrCancelled) {
			logrus.Errorf("replication failed: %v", runErr)
		}
		return nil, runErr
	}
	if completed < replications {
		return nil, sim.ErrCancelled
	}

	outcome := assemble(base, runs, opts)
	logrus.Infof("%d replication(s) complete", replications)
	return outcome, nil
}

func runReplication(ctx context.Context, cfg sim.SimulationConfig, base int64, index int) replicationResult {
	seed := ReplicationSeed(base, index)
	r := replicationResult{index: index, seed: seed}
	s, err := sim.NewSimulator(cfg, sim.NewSimulationKey(seed))
	if err != nil {
		r.err = err
		return r
	}
	s.WithFields(logrus.Fields{"replication": index})
	r.result, r.err = s.Run(ctx)
	return r
}

func assemble(base int64, runs []replicationResult, opts Options) *Outcome {
	if len(runs) == 1 {
		res := runs[0].result
		outcome := &Outcome{
			Type:       TypeSingle,
			BaseSeed:   base,
			KPIs:       &res.KPIs,
			Timeseries: res.Timeseries,
		}
		if opts.TraceSummary {
			outcome.TraceSummary = trace.Summarize(res.Trace)
		}
		return outcome
	}

	sets := make([]sim.KPISet, len(runs))
	for i, r := range runs {
		sets[i] = r.result.KPIs
	}
	summary := Summarize(sets)
	outcome := &Outcome{
		Type:     TypeMonteCarlo,
		BaseSeed: base,
		Summary:  &summary,
	}
	if opts.KeepSamples {
		outcome.Samples = make([]Sample, len(runs))
		for i, r := range runs {
			outcome.Samples[i] = Sample{Replication: r.index, Seed: r.seed, KPIs: r.result.KPIs}
			if opts.TraceSummary {
				outcome.Samples[i].TraceSummary = trace.Summarize(r.result.Trace)
			}
		}
	}
	return outcome
}
