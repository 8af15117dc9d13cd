// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one conversion run: it resolves the source,
// prepares the output root, walks the tree, converts every file, and
// writes the failure report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/formats"
	"github.com/pdiddy/docbatch/internal/report"
	"github.com/pdiddy/docbatch/internal/walk"
	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrCancelled is the failure recorded for tasks never dispatched because
// the run was cancelled.
var ErrCancelled = errors.New("cancelled")

// State is a stage of a run.
type State int

const (
	Idle State = iota
	Walking
	Converting
	Reporting
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Walking:
		return "walking"
	case Converting:
		return "converting"
	case Reporting:
		return "reporting"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Converter converts one task. *convert.Invoker satisfies it.
type Converter interface {
	Convert(ctx context.Context, task types.ConversionTask) types.ConversionResult
}

// Observer follows a run's progress. *progress.Reporter satisfies it.
type Observer interface {
	Begin(total int)
	Started(task types.ConversionTask)
	Done(res types.ConversionResult)
}

// Deps are the collaborators of a run. Converter is required.
type Deps struct {
	Converter Converter
	Logger    *log.Logger
	Observer  Observer

	// OnResult receives every result in completion order.
	OnResult func(types.ConversionResult)

	// OnState receives each state transition.
	OnState func(State)
}

type run struct {
	cfg  types.ConversionConfig
	deps Deps
	log  *log.Logger

	mu      sync.Mutex
	summary types.RunSummary
}

// Run performs a full conversion pass. A *types.SetupError means nothing
// was converted. Per-file failures are recorded in the summary and do not
// produce an error. When ctx is cancelled the remaining tasks are recorded
// as cancelled, the report is still written, and ctx.Err() is returned.
func Run(ctx context.Context, cfg types.ConversionConfig, deps Deps) (types.RunSummary, error) {
	if deps.Converter == nil {
		return types.RunSummary{}, errors.New("pipeline: no converter")
	}
	r := &run{cfg: cfg, deps: deps, log: deps.Logger}
	if r.log == nil {
		r.log = log.New(io.Discard)
	}
	r.summary = types.RunSummary{Format: cfg.Format, StartedAt: time.Now()}
	r.state(Idle)

	root, err := walk.Resolve(cfg.Source)
	if err != nil {
		r.state(Aborted)
		return r.summary, err
	}
	r.summary.Source = root.Path

	output, err := prepareOutput(cfg.Output)
	if err != nil {
		r.state(Aborted)
		return r.summary, err
	}
	r.summary.Output = output

	r.state(Walking)
	planner := walk.Planner{Root: root, Output: output, Options: cfg.ConversionOptions}
	filter := excluding(formats.WithExtra(cfg.ExtraExtensions), root.Path, output)
	tasks, warns, err := planner.Collect(walk.Files(root.Path, filter))
	for _, w := range warns {
		r.log.Warn("skipping unreadable entry", "err", w)
	}
	if err != nil {
		r.state(Aborted)
		return r.summary, err
	}
	if len(tasks) == 0 {
		r.log.Warn("no supported files found", "source", root.Path)
	}
	r.warnSharedNames(tasks)

	r.state(Converting)
	if deps.Observer != nil {
		deps.Observer.Begin(len(tasks))
	}
	r.convertAll(ctx, tasks)

	r.state(Reporting)
	r.summary.SortFailures()
	r.summary.FinishedAt = time.Now()
	path, err := report.WriteFailures(output, r.summary)
	if err != nil {
		r.state(Aborted)
		return r.summary, fmt.Errorf("writing failure report: %w", err)
	}
	r.summary.ReportPath = path

	if err := ctx.Err(); err != nil {
		r.state(Aborted)
		return r.summary, err
	}
	r.state(Done)
	return r.summary, nil
}

func (r *run) state(s State) {
	r.log.Debug("pipeline", "state", s)
	if r.deps.OnState != nil {
		r.deps.OnState(s)
	}
}

func (r *run) convertAll(ctx context.Context, tasks []types.ConversionTask) {
	jobs := r.cfg.Jobs
	if jobs <= 1 {
		for _, task := range tasks {
			r.convertOne(ctx, task)
		}
		return
	}

	// Sources sharing an output name run one after another.
	var g errgroup.Group
	g.SetLimit(jobs)
	for _, group := range byOutputName(tasks) {
		if ctx.Err() != nil {
			for _, task := range group {
				r.record(cancelled(task))
			}
			continue
		}
		g.Go(func() error {
			for _, task := range group {
				r.convertOne(ctx, task)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func outputName(task types.ConversionTask) string {
	return filepath.Join(task.DestinationDir, convert.Stem(task.SourcePath))
}

// byOutputName groups tasks whose artifacts would share names, keeping
// first-seen order.
func byOutputName(tasks []types.ConversionTask) [][]types.ConversionTask {
	index := make(map[string]int, len(tasks))
	var groups [][]types.ConversionTask
	for _, task := range tasks {
		key := outputName(task)
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], task)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []types.ConversionTask{task})
	}
	return groups
}

// warnSharedNames logs sources whose artifacts overwrite an earlier
// source's in the same directory.
func (r *run) warnSharedNames(tasks []types.ConversionTask) {
	for _, group := range byOutputName(tasks) {
		for _, task := range group[1:] {
			r.log.Warn("sources share an output name; the later conversion overwrites the earlier",
				"path", task.SourcePath, "other", group[0].SourcePath)
		}
	}
}

func (r *run) convertOne(ctx context.Context, task types.ConversionTask) {
	if ctx.Err() != nil {
		r.record(cancelled(task))
		return
	}
	if r.deps.Observer != nil {
		r.deps.Observer.Started(task)
	}
	r.record(r.deps.Converter.Convert(ctx, task))
}

func (r *run) record(res types.ConversionResult) {
	r.mu.Lock()
	r.summary.Add(res)
	r.mu.Unlock()

	switch res.Status {
	case types.ConversionFailed:
		r.log.Warn("conversion failed", "path", res.Task.SourcePath, "reason", res.Reason())
	case types.ConversionSkipped:
		r.log.Debug("skipped", "path", res.Task.SourcePath)
	default:
		r.log.Debug("converted", "path", res.Task.SourcePath, "artifacts", len(res.Artifacts), "took", res.Duration)
	}
	if r.deps.Observer != nil {
		r.deps.Observer.Done(res)
	}
	if r.deps.OnResult != nil {
		r.deps.OnResult(res)
	}
}

func cancelled(task types.ConversionTask) types.ConversionResult {
	return types.ConversionResult{
		Task:   task,
		Status: types.ConversionFailed,
		Err:    &types.ConversionError{Path: task.SourcePath, ExitCode: -1, Err: ErrCancelled},
	}
}

// prepareOutput creates the output root and checks that it is writable
// with a probe file.
func prepareOutput(output string) (string, error) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", &types.SetupError{Op: "resolve output", Path: output, Err: err}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", &types.SetupError{Op: "create output", Path: abs, Err: err}
	}
	probe, err := os.CreateTemp(abs, ".docbatch-probe-*")
	if err != nil {
		return "", &types.SetupError{Op: "write output", Path: abs, Err: err}
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return "", &types.SetupError{Op: "write output", Path: abs, Err: err}
	}
	return abs, nil
}

// excluding wraps filter so files under output are not treated as input
// when the output root sits inside the source tree.
func excluding(filter formats.Filter, source, output string) formats.Filter {
	if output == source || !within(output, source) {
		return filter
	}
	prefix := output + string(filepath.Separator)
	return func(path string) bool {
		if strings.HasPrefix(path, prefix) {
			return false
		}
		return filter(path)
	}
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
