// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

func failure(path, reason string) types.ConversionResult {
	return types.ConversionResult{
		Task:   types.ConversionTask{SourcePath: path},
		Status: types.ConversionFailed,
		Err:    errors.New(reason),
	}
}

func summaryWith(results ...types.ConversionResult) types.RunSummary {
	s := types.RunSummary{
		Source:    "/src",
		Output:    "/out",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	for _, r := range results {
		s.Add(r)
	}
	s.FinishedAt = s.StartedAt.Add(1500 * time.Millisecond)
	return s
}

func TestWriteFailures(t *testing.T) {
	out := t.TempDir()
	s := summaryWith(
		failure("/src/z.pdf", "exit status 1: bad\nsecond line"),
		types.ConversionResult{Task: types.ConversionTask{SourcePath: "/src/ok.pdf"}, Status: types.ConversionDone},
		failure("/src/a/b.docx", "timed out"),
	)

	path, err := WriteFailures(out, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, FailureFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Files that failed conversion:\n"+
		"/src/a/b.docx\n\ttimed out\n"+
		"/src/z.pdf\n\texit status 1: bad second line\n", string(data))

	got, err := ReadFailures(path)
	require.NoError(t, err)
	assert.Equal(t, []types.Failure{
		{Path: "/src/a/b.docx", Reason: "timed out"},
		{Path: "/src/z.pdf", Reason: "exit status 1: bad second line"},
	}, got)
}

func TestWriteFailures_Overwrites(t *testing.T) {
	out := t.TempDir()
	_, err := WriteFailures(out, summaryWith(failure("/src/a.pdf", "x"), failure("/src/b.pdf", "y")))
	require.NoError(t, err)

	path, err := WriteFailures(out, summaryWith(failure("/src/c.pdf", "z")))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "/src/c.pdf\n\tz\n")
	assert.NotContains(t, string(data), "a.pdf")
}

func TestReadFailures_PathWithColon(t *testing.T) {
	out := t.TempDir()
	path, err := WriteFailures(out, summaryWith(
		failure("/src/notes: draft.pdf", "exit status 1: RuntimeError: bad page"),
		failure("/src/plain.pdf", ""),
	))
	require.NoError(t, err)

	got, err := ReadFailures(path)
	require.NoError(t, err)
	assert.Equal(t, []types.Failure{
		{Path: "/src/notes: draft.pdf", Reason: "exit status 1: RuntimeError: bad page"},
		{Path: "/src/plain.pdf", Reason: "unknown error"},
	}, got)
}

func TestWriteFailures_NoFailuresRemovesStaleReport(t *testing.T) {
	out := t.TempDir()
	stale := filepath.Join(out, FailureFile)
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	path, err := WriteFailures(out, summaryWith())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.NoFileExists(t, stale)

	path, err = WriteFailures(out, summaryWith())
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestWriteSummary(t *testing.T) {
	s := summaryWith(
		failure("/src/b.pdf", "boom"),
		types.ConversionResult{Status: types.ConversionSkipped},
		types.ConversionResult{Status: types.ConversionDone},
	)
	s.Format = "md"
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "summary.yaml")
		require.NoError(t, WriteSummary(path, s))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc summaryDoc
		require.NoError(t, yaml.Unmarshal(data, &doc))
		assert.Equal(t, 3, doc.Total)
		assert.Equal(t, 2, doc.Succeeded)
		assert.Equal(t, 1, doc.Skipped)
		assert.Equal(t, 1, doc.Failed)
		assert.Equal(t, "1.5s", doc.Duration)
		assert.Equal(t, "2026-01-02T03:04:05Z", doc.StartedAt)
		assert.Equal(t, []types.Failure{{Path: "/src/b.pdf", Reason: "boom"}}, doc.Failures)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "summary.json")
		require.NoError(t, WriteSummary(path, s))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "md", doc["format"])
		assert.EqualValues(t, 3, doc["total"])
	})
}
