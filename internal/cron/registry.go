package cron

import (
	"context"
	"sync"
	"time"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds jobs with their cadence. A job registered with every <= 0
// runs on each cycle; otherwise it waits until every has passed since its last run.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// NewRegistry registers jobs that run on every cycle.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job, 0)
	}
	return registry
}

// Register adds job with the given cadence.
func (r *Registry) Register(job Job, every time.Duration) {
	if job == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &entry{job: job, every: every})
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// Due returns the jobs whose cadence has elapsed at now.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, e := range r.entries {
		if e.every <= 0 || e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRun records that the named job ran at the given time.
func (r *Registry) MarkRun(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == name {
			e.lastRun = at
		}
	}
}
