// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report writes the end-of-run artifacts: the plain-text failure
// report at the output root and an optional machine-readable summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

// FailureFile is the report name inside the output root.
const FailureFile = "failed_conversions.txt"

const header = "Files that failed conversion:"

// WriteFailures writes the failure report for summary into outputRoot,
// replacing any report from an earlier run. Failures are ordered by path;
// each path is on its own line, followed by its reason on a line indented
// with a tab. With no failures a stale report is
// removed and the returned path is empty.
func WriteFailures(outputRoot string, summary types.RunSummary) (string, error) {
	path := filepath.Join(outputRoot, FailureFile)
	if !summary.HasFailures() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("removing stale report %s: %w", path, err)
		}
		return "", nil
	}

	summary.SortFailures()
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, f := range summary.Failures {
		fmt.Fprintf(&b, "%s\n\t%s\n", f.Task.SourcePath, oneLine(f.Reason()))
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", outputRoot, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// ReadFailures parses a report written by WriteFailures.
func ReadFailures(path string) ([]types.Failure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var out []types.Failure
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || line == header {
			continue
		}
		if reason, ok := strings.CutPrefix(line, "\t"); ok && len(out) > 0 {
			out[len(out)-1].Reason = reason
			continue
		}
		out = append(out, types.Failure{Path: line})
	}
	return out, nil
}

// oneLine keeps reasons to a single report line.
func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown error"
	}
	return strings.Join(strings.Fields(s), " ")
}

// summaryDoc is the exported shape of a RunSummary.
type summaryDoc struct {
	Source     string          `json:"source" yaml:"source"`
	Output     string          `json:"output" yaml:"output"`
	Format     string          `json:"format,omitempty" yaml:"format,omitempty"`
	StartedAt  string          `json:"started_at" yaml:"started_at"`
	FinishedAt string          `json:"finished_at" yaml:"finished_at"`
	Duration   string          `json:"duration" yaml:"duration"`
	Total      int             `json:"total" yaml:"total"`
	Succeeded  int             `json:"succeeded" yaml:"succeeded"`
	Skipped    int             `json:"skipped" yaml:"skipped"`
	Failed     int             `json:"failed" yaml:"failed"`
	ReportPath string          `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	Failures   []types.Failure `json:"failures" yaml:"failures"`
}

func toDoc(s types.RunSummary) summaryDoc {
	s.SortFailures()
	return summaryDoc{
		Source:     s.Source,
		Output:     s.Output,
		Format:     s.Format,
		StartedAt:  s.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: s.FinishedAt.UTC().Format(time.RFC3339),
		Duration:   s.Duration().Round(time.Millisecond).String(),
		Total:      s.Total,
		Succeeded:  s.Succeeded,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		ReportPath: s.ReportPath,
		Failures:   s.FailureList(),
	}
}

// WriteSummary exports summary to path as YAML when the extension is
// .yaml or .yml, JSON otherwise.
func WriteSummary(path string, summary types.RunSummary) error {
	doc := toDoc(summary)

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}
