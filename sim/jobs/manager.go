package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stochastix-twin/twin-sim/sim"
	"github.com/stochastix-twin/twin-sim/sim/montecarlo"
)

var (
	// ErrJobNotFound is returned for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrManagerClosed is returned by Submit once the manager is shutting down.
	ErrManagerClosed = errors.New("job manager is closed")
)

// Options configure a Manager. The zero value is valid.
type Options struct {
	// MaxConcurrentJobs bounds jobs running at once; later jobs stay pending.
	// <= 0 means 1.
	MaxConcurrentJobs int
	// Workers bounds concurrent replications within one job. <= 0 means GOMAXPROCS.
	Workers int
	// KeepSamples and TraceSummary are forwarded to montecarlo.Run.
	KeepSamples  bool
	TraceSummary bool
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Manager owns every job of the process. Jobs live in memory only.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	slots  chan struct{}
	wg     sync.WaitGroup

	// runMonteCarlo executes one job; montecarlo.Run outside tests.
	runMonteCarlo func(context.Context, sim.SimulationConfig, int, montecarlo.Options) (*montecarlo.Outcome, error)

	// mu guards jobs and closed. wg.Add only happens under mu while closed is
	// false, so Close never races a late Submit.
	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool
}

// NewManager creates a manager whose jobs are cancelled when ctx is.
func NewManager(ctx context.Context, opts Options) *Manager {
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		slots:  make(chan struct{}, opts.MaxConcurrentJobs),
		jobs:   make(map[string]*Job),

		runMonteCarlo: montecarlo.Run,
	}
}

// Submit validates the request and starts a job in the background.
// Invalid input returns a *sim.ConfigurationError and creates no job.
func (m *Manager) Submit(cfg sim.SimulationConfig, replications int) (Snapshot, error) {
	if replications < 1 || replications > montecarlo.MaxReplications {
		return Snapshot{}, &sim.ConfigurationError{
			Field:  "replications",
			Reason: fmt.Sprintf("must be in [1, %d], got %d", montecarlo.MaxReplications, replications),
		}
	}
	if err := cfg.Validate(); err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	if m.closed || m.ctx.Err() != nil {
		m.mu.Unlock()
		return Snapshot{}, ErrManagerClosed
	}
	job := newJob(m.ctx, uuid.NewString(), cfg, replications, m.opts.Now)
	m.jobs[job.id] = job
	m.wg.Add(1)
	m.mu.Unlock()

	logrus.WithField("job_id", job.id).Infof("job submitted: %d replication(s), %d days", replications, cfg.Days)
	snap := job.Snapshot()
	go m.run(job)
	return snap, nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Snapshot, error) {
	job, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return job.Snapshot(), nil
}

// Cancel requests cooperative cancellation. The job turns cancelled at its
// next day boundary, or immediately when it has not started. Cancelling a
// finished job has no effect.
func (m *Manager) Cancel(id string) (Snapshot, error) {
	job, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	job.cancel()
	return job.Snapshot(), nil
}

// Job returns the job handle, for callers that want to wait on Done.
func (m *Manager) Job(id string) (*Job, error) {
	return m.lookup(id)
}

// Wait blocks until every submitted job is terminal.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close rejects further submissions, cancels every job and waits for them
// to stop.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) lookup(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (m *Manager) run(job *Job) {
	defer m.wg.Done()

	select {
	case m.slots <- struct{}{}:
	case <-job.ctx.Done():
		job.finish(nil, sim.ErrCancelled)
		return
	}
	defer func() { <-m.slots }()

	if job.ctx.Err() != nil || !job.start() {
		job.finish(nil, sim.ErrCancelled)
		return
	}
	outcome, err := m.runMonteCarlo(job.ctx, job.cfg, job.replications, montecarlo.Options{
		Workers:      m.opts.Workers,
		KeepSamples:  m.opts.KeepSamples,
		TraceSummary: m.opts.TraceSummary,
		Progress:     job,
	})
	job.finish(outcome, err)
}
