// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pdiddy/docbatch/internal/pipeline"
	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the lifecycle state of a web job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusError   JobStatus = "error"
)

// JobKind distinguishes server-side directory runs from upload runs.
type JobKind string

const (
	KindDirectory JobKind = "directory"
	KindUpload    JobKind = "upload"
)

// Job is a conversion run started from the web front end. Values returned
// by the Manager are snapshots.
type Job struct {
	ID         string     `json:"id"`
	Kind       JobKind    `json:"kind"`
	Status     JobStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Source string `json:"source"`
	Output string `json:"output"`
	Format string `json:"format,omitempty"`

	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Current   string `json:"current,omitempty"`

	Summary    *types.RunSummary `json:"summary,omitempty"`
	Failures   []types.Failure   `json:"failures,omitempty"`
	ReportPath string            `json:"report_path,omitempty"`
	ArchiveURL string            `json:"archive_url,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Active reports whether the job has not finished yet.
func (j Job) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// Runner performs one conversion run, reporting progress to obs.
type Runner interface {
	Run(ctx context.Context, cfg types.ConversionConfig, obs pipeline.Observer) (types.RunSummary, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cfg types.ConversionConfig, obs pipeline.Observer) (types.RunSummary, error)

func (f RunnerFunc) Run(ctx context.Context, cfg types.ConversionConfig, obs pipeline.Observer) (types.RunSummary, error) {
	return f(ctx, cfg, obs)
}

// finisher runs after a successful conversion and returns the URL of any
// archive it produced.
type finisher func(id string, summary types.RunSummary) (archiveURL string, err error)

// Manager tracks jobs and bounds how many run at once.
type Manager struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	sem    chan struct{}
	runner Runner
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a Manager running at most maxJobs jobs concurrently.
func NewManager(runner Runner, maxJobs int, logger *log.Logger) *Manager {
	if maxJobs < 1 {
		maxJobs = 1
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:   make(map[string]*Job),
		sem:    make(chan struct{}, maxJobs),
		runner: runner,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit registers a pending job for cfg and starts it in the background.
func (m *Manager) Submit(kind JobKind, cfg types.ConversionConfig, finish finisher, cleanup func()) Job {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Source:    cfg.Source,
		Output:    cfg.Output,
		Format:    cfg.Format,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snap := *job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(job.ID, cfg, finish, cleanup)
	return snap
}

func (m *Manager) run(id string, cfg types.ConversionConfig, finish finisher, cleanup func()) {
	defer m.wg.Done()
	if cleanup != nil {
		defer cleanup()
	}

	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		m.fail(id, m.ctx.Err())
		return
	}
	defer func() { <-m.sem }()

	m.update(id, func(j *Job) { j.Status = StatusRunning })
	m.logger.Info("job started", "id", id, "source", cfg.Source)

	summary, err := m.runner.Run(m.ctx, cfg, &jobObserver{m: m, id: id})
	if err != nil {
		m.fail(id, err)
		return
	}

	var archiveURL string
	if finish != nil {
		if archiveURL, err = finish(id, summary); err != nil {
			m.fail(id, err)
			return
		}
	}

	m.update(id, func(j *Job) {
		j.Status = StatusDone
		j.Summary = &summary
		j.Failures = summary.FailureList()
		j.ArchiveURL = archiveURL
		if j.Kind == KindDirectory {
			j.ReportPath = summary.ReportPath
		}
		j.Total = summary.Total
		j.Processed = summary.Total
		j.Failed = summary.Failed
		j.Current = ""
		now := time.Now()
		j.FinishedAt = &now
	})
	m.logger.Info("job finished", "id", id, "succeeded", summary.Succeeded, "failed", summary.Failed)
}

func (m *Manager) fail(id string, err error) {
	m.logger.Error("job failed", "id", id, "err", err)
	m.update(id, func(j *Job) {
		j.Status = StatusError
		j.Error = err.Error()
		j.Current = ""
		now := time.Now()
		j.FinishedAt = &now
	})
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		fn(j)
	}
}

// Get returns a snapshot of one job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *j, nil
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []Job {
	m.mu.Lock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	m.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Wait blocks until every submitted job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close cancels running jobs and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// jobObserver feeds pipeline progress into a job's counters.
type jobObserver struct {
	m  *Manager
	id string
}

func (o *jobObserver) Begin(total int) {
	o.m.update(o.id, func(j *Job) { j.Total = total })
}

func (o *jobObserver) Started(task types.ConversionTask) {
	o.m.update(o.id, func(j *Job) { j.Current = task.RelPath })
}

func (o *jobObserver) Done(res types.ConversionResult) {
	o.m.update(o.id, func(j *Job) {
		j.Processed++
		if !res.OK() {
			j.Failed++
		}
	})
}
