// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", dbFile))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func runSummary(started time.Time, failures ...string) types.RunSummary {
	s := types.RunSummary{
		Source:    "/src",
		Output:    "/out",
		Format:    "md",
		StartedAt: started,
	}
	s.Add(types.ConversionResult{Status: types.ConversionDone})
	s.Add(types.ConversionResult{Status: types.ConversionSkipped})
	for _, p := range failures {
		s.Add(types.ConversionResult{
			Task:   types.ConversionTask{SourcePath: p},
			Status: types.ConversionFailed,
			Err:    errors.New("exit status 1"),
		})
	}
	s.FinishedAt = started.Add(time.Minute)
	return s
}

func TestRecordAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sum := runSummary(started, "/src/b.pdf", "/src/a.pdf")
	sum.ReportPath = "/out/failed_conversions.txt"
	id, err := s.Record(ctx, sum)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/src", run.Source)
	assert.Equal(t, "md", run.Format)
	assert.Equal(t, 4, run.Total)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 2, run.Failed)
	assert.True(t, run.StartedAt.Equal(started))
	assert.Equal(t, "/out/failed_conversions.txt", run.ReportPath)

	fails, err := s.Failures(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []types.Failure{
		{Path: "/src/a.pdf", Reason: "exit status 1"},
		{Path: "/src/b.pdf", Reason: "exit status 1"},
	}, fails)
}

func TestListNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Record(ctx, runSummary(base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGetUnknown(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Failures(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), dbFile)
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Record(context.Background(), runSummary(time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
}
