// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/internal/pipeline"
	"github.com/pdiddy/docbatch/pkg/types"
)

func TestManager_BoundsConcurrentJobs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	runner := RunnerFunc(func(_ context.Context, cfg types.ConversionConfig, _ pipeline.Observer) (types.RunSummary, error) {
		started <- cfg.Source
		<-release
		return types.RunSummary{Source: cfg.Source}, nil
	})

	m := NewManager(runner, 1, nil)
	defer m.Close()

	first := m.Submit(KindDirectory, types.ConversionConfig{Source: "first"}, nil, nil)
	require.Equal(t, "first", <-started)
	second := m.Submit(KindDirectory, types.ConversionConfig{Source: "second"}, nil, nil)

	require.Eventually(t, func() bool {
		j, _ := m.Get(first.ID)
		return j.Status == StatusRunning
	}, time.Second, 5*time.Millisecond)

	j, err := m.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)

	close(release)
	m.Wait()

	for _, id := range []string{first.ID, second.ID} {
		j, err := m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, StatusDone, j.Status)
	}
}

func TestManager_CloseCancelsRunningJobs(t *testing.T) {
	runner := RunnerFunc(func(ctx context.Context, _ types.ConversionConfig, _ pipeline.Observer) (types.RunSummary, error) {
		<-ctx.Done()
		return types.RunSummary{}, ctx.Err()
	})
	m := NewManager(runner, 1, nil)
	job := m.Submit(KindDirectory, types.ConversionConfig{}, nil, nil)
	m.Close()

	j, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, j.Status)
	assert.Equal(t, context.Canceled.Error(), j.Error)
}

func TestJobObserver_TracksProgress(t *testing.T) {
	runner := RunnerFunc(func(_ context.Context, _ types.ConversionConfig, obs pipeline.Observer) (types.RunSummary, error) {
		obs.Begin(2)
		var sum types.RunSummary
		for _, st := range []types.ConversionStatus{types.ConversionDone, types.ConversionFailed} {
			task := types.ConversionTask{RelPath: "x.pdf"}
			obs.Started(task)
			res := types.ConversionResult{Task: task, Status: st}
			obs.Done(res)
			sum.Add(res)
		}
		return sum, nil
	})
	m := NewManager(runner, 1, nil)
	job := m.Submit(KindDirectory, types.ConversionConfig{}, nil, nil)
	m.Wait()

	j, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, j.Total)
	assert.Equal(t, 2, j.Processed)
	assert.Equal(t, 1, j.Failed)
	assert.Empty(t, j.Current)
	assert.False(t, j.Active())
}

func TestZipDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.md"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "b", "deep.json"), []byte("{}"), 0o644))

	dest := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, ZipDir(src, dest))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"top.md", "a/b/deep.json"}, names)
}

func TestCleanOldArchives(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.zip")
	fresh := filepath.Join(dir, "fresh.zip")
	other := filepath.Join(dir, "old.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := CleanOldArchives(dir, time.Hour, log.New(os.Stderr))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}
