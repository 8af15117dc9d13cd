// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"time"
)

// ConversionStatus indicates the outcome of converting a single file.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)

// ConversionOptions are the per-run engine settings copied into every task.
type ConversionOptions struct {
	// Format is the engine output format (e.g. "md", "json"). Empty means the
	// engine default.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// SkipExisting skips files whose destination already holds artifacts.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing"`

	// Verbose surfaces the engine's own output for every file.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Timeout bounds a single engine invocation. Zero means no limit.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ConversionTask is one source-file-to-destination conversion unit.
type ConversionTask struct {
	// SourcePath is the absolute path of the input document.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// DestinationDir is the mirrored directory the engine writes into.
	DestinationDir string `json:"destination_dir" yaml:"destination_dir"`

	// RelPath is SourcePath relative to the source root, slash separated.
	RelPath string `json:"rel_path" yaml:"rel_path"`

	Options ConversionOptions `json:"-" yaml:"-"`
}

// ConversionResult records what happened to one task.
type ConversionResult struct {
	Task   ConversionTask   `json:"task" yaml:"task"`
	Status ConversionStatus `json:"status" yaml:"status"`

	// Err is set when Status is ConversionFailed.
	Err error `json:"-" yaml:"-"`

	// Artifacts lists the files the engine produced for this source.
	Artifacts []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// EngineOutput is the captured stdout/stderr of the engine.
	EngineOutput string `json:"-" yaml:"-"`

	Duration time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether the result counts as a success.
func (r ConversionResult) OK() bool {
	return r.Status != ConversionFailed
}

// Reason returns the failure text, or "" for successful results.
func (r ConversionResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Failure is the serialisable form of a failed result.
type Failure struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// RunSummary aggregates the results of one full directory pass.
type RunSummary struct {
	Source     string    `json:"source" yaml:"source"`
	Output     string    `json:"output" yaml:"output"`
	Format     string    `json:"format,omitempty" yaml:"format,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`

	// Failures holds the failed results ordered by source path.
	Failures []ConversionResult `json:"-" yaml:"-"`

	// ReportPath is the failure report written for this run, if any.
	ReportPath string `json:"report_path,omitempty" yaml:"report_path,omitempty"`
}

// Add folds one result into the summary.
func (s *RunSummary) Add(r ConversionResult) {
	s.Total++
	switch r.Status {
	case ConversionFailed:
		s.Failed++
		s.Failures = append(s.Failures, r)
	case ConversionSkipped:
		s.Skipped++
		s.Succeeded++
	default:
		s.Succeeded++
	}
}

// SortFailures orders Failures by source path.
func (s *RunSummary) SortFailures() {
	sort.SliceStable(s.Failures, func(i, j int) bool {
		return s.Failures[i].Task.SourcePath < s.Failures[j].Task.SourcePath
	})
}

// HasFailures reports whether any file failed conversion.
func (s RunSummary) HasFailures() bool {
	return s.Failed > 0
}

// Duration returns the wall-clock length of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailureList returns the failures in their serialisable form.
func (s RunSummary) FailureList() []Failure {
	out := make([]Failure, 0, len(s.Failures))
	for _, f := range s.Failures {
		out = append(out, Failure{Path: f.Task.SourcePath, Reason: f.Reason()})
	}
	return out
}
