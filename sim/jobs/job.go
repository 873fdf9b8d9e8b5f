// Package jobs tracks simulation jobs submitted by external callers. Every job
// runs in the background and is observed through thread-safe snapshots.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stochastix-twin/twin-sim/sim"
	"github.com/stochastix-twin/twin-sim/sim/montecarlo"
)

// Status is the lifecycle state of a job.
//
//	pending -> running -> complete | error | cancelled
//	pending -> cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// Snapshot is a consistent copy of a job's state.
type Snapshot struct {
	JobID        string              `json:"job_id"`
	Status       Status              `json:"status"`
	Progress     float64             `json:"progress"`
	Replications int                 `json:"replications"`
	CreatedAt    time.Time           `json:"created_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	Result       *montecarlo.Outcome `json:"result,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Job is one submitted simulation. State transitions are made only by the
// goroutine running the job; everything else reads through Snapshot.
type Job struct {
	id           string
	cfg          sim.SimulationConfig
	replications int
	createdAt    time.Time
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     Status
	progress   float64
	finishedAt *time.Time
	result     *montecarlo.Outcome
	errMsg     string
}

func newJob(parent context.Context, id string, cfg sim.SimulationConfig, replications int, now func() time.Time) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		id:           id,
		cfg:          cfg,
		replications: replications,
		createdAt:    now().UTC(),
		now:          now,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		status:       StatusPending,
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Done is closed once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Snapshot returns the current state of the job.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		JobID:        j.id,
		Status:       j.status,
		Progress:     j.progress,
		Replications: j.replications,
		CreatedAt:    j.createdAt,
		FinishedAt:   j.finishedAt,
		Result:       j.result,
		Error:        j.errMsg,
	}
}

// ReportProgress records completed/total. Progress never decreases and stays
// below 1 until the job completes.
func (j *Job) ReportProgress(completed, total int) {
	if total <= 0 {
		return
	}
	p := float64(completed) / float64(total)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning || p >= 1 || p <= j.progress {
		return
	}
	j.progress = p
}

// start moves a pending job to running.
func (j *Job) start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending {
		return false
	}
	j.status = StatusRunning
	return true
}

// finish records the terminal state matching err and releases waiters.
func (j *Job) finish(outcome *montecarlo.Outcome, err error) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	finished := j.now().UTC()
	j.finishedAt = &finished
	switch {
	case err == nil:
		j.status = StatusComplete
		j.progress = 1
		j.result = outcome
	case errors.Is(err, sim.ErrCancelled):
		j.status = StatusCancelled
	default:
		j.status = StatusError
		j.errMsg = err.Error()
	}
	status := j.status
	j.mu.Unlock()

	j.cancel()
	close(j.done)

	entry := logrus.WithFields(logrus.Fields{"job_id": j.id, "status": status})
	if err != nil && status == StatusError {
		entry.Errorf("job failed: %v", err)
		return
	}
	entry.Infof("job finished after %s", finished.Sub(j.createdAt))
}
