// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/engine"
	"github.com/pdiddy/docbatch/internal/report"
	"github.com/pdiddy/docbatch/pkg/types"
)

// fakeEngine writes <stem>.md for every source except those whose base
// name is in fail.
type fakeEngine struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	empty map[string]bool
	delay time.Duration
}

func (f *fakeEngine) Name() string                { return "fake" }
func (f *fakeEngine) Check(context.Context) error { return nil }

func (f *fakeEngine) Convert(ctx context.Context, req engine.Request) (engine.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Source)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return engine.Response{ExitCode: -1}, errors.New("timed out")
		}
	}
	base := filepath.Base(req.Source)
	if f.fail[base] {
		return engine.Response{ExitCode: 1, Output: "boom: " + base}, nil
	}
	if f.empty[base] {
		return engine.Response{}, nil
	}
	out := filepath.Join(req.OutputDir, convert.Stem(req.Source)+".md")
	return engine.Response{}, os.WriteFile(out, []byte("# "+base), 0o644)
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func writeTree(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func config(src, out string) types.ConversionConfig {
	return types.ConversionConfig{Source: src, Output: out, Jobs: 1}
}

func runOK(t *testing.T, cfg types.ConversionConfig, eng *fakeEngine) types.RunSummary {
	t.Helper()
	sum, err := Run(context.Background(), cfg, Deps{Converter: convert.NewInvoker(eng, nil)})
	require.NoError(t, err)
	return sum
}

var tree = []string{"a.pdf", "notes.txt", "sub/b.docx", "sub/deep/c.pptx", "sub/skip.exe"}

func TestRun_AllSucceed(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, tree...)
	eng := &fakeEngine{}

	sum := runOK(t, config(src, out), eng)

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 4, sum.Succeeded)
	assert.Zero(t, sum.Failed)
	assert.Empty(t, sum.Failures)
	assert.Empty(t, sum.ReportPath)
	assert.NoFileExists(t, filepath.Join(out, report.FailureFile))
	assert.Equal(t, 4, eng.callCount())

	for _, rel := range []string{"a.md", "notes.md", "sub/b.md", "sub/deep/c.md"} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(rel)))
	}
}

func TestRun_PartialFailureIsolated(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, tree...)
	eng := &fakeEngine{fail: map[string]bool{"b.docx": true}}

	sum := runOK(t, config(src, out), eng)

	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, filepath.Join(src, "sub", "b.docx"), sum.Failures[0].Task.SourcePath)

	require.Equal(t, filepath.Join(out, report.FailureFile), sum.ReportPath)
	fails, err := report.ReadFailures(sum.ReportPath)
	require.NoError(t, err)
	require.Len(t, fails, 1)
	assert.Equal(t, filepath.Join(src, "sub", "b.docx"), fails[0].Path)
	assert.Contains(t, fails[0].Reason, "boom: b.docx")

	assert.FileExists(t, filepath.Join(out, "a.md"))
	assert.FileExists(t, filepath.Join(out, "sub", "deep", "c.md"))
}

func TestRun_ZeroExitWithoutArtifactsFails(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "a.pdf", "b.pdf")
	eng := &fakeEngine{empty: map[string]bool{"a.pdf": true}}

	sum := runOK(t, config(src, out), eng)

	require.Len(t, sum.Failures, 1)
	assert.True(t, errors.Is(sum.Failures[0].Err, convert.ErrNoArtifacts))
}

func TestRun_SkipExistingDoesNotReinvoke(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, tree...)
	runOK(t, config(src, out), &fakeEngine{})

	cfg := config(src, out)
	cfg.SkipExisting = true
	eng := &fakeEngine{}
	sum := runOK(t, cfg, eng)

	assert.Zero(t, eng.callCount())
	assert.Equal(t, 4, sum.Skipped)
	assert.Equal(t, 4, sum.Succeeded)
}

func TestRun_SkipExistingWithSiblingStems(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "v1.pdf", "v1.2.pdf", "sub/report.pdf", "sub/report_a.pdf")

	cfg := config(src, out)
	cfg.SkipExisting = true
	eng := &fakeEngine{fail: map[string]bool{"report.pdf": true}}
	sum := runOK(t, cfg, eng)

	assert.Equal(t, 4, eng.callCount())
	assert.Zero(t, sum.Skipped)
	require.Len(t, sum.Failures, 1)
	require.FileExists(t, filepath.Join(out, report.FailureFile))

	eng = &fakeEngine{}
	sum = runOK(t, cfg, eng)

	assert.Equal(t, []string{filepath.Join(src, "sub", "report.pdf")}, eng.calls)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Failed)
	assert.FileExists(t, filepath.Join(out, "sub", "report.md"))
}

func TestRun_SymlinkedSource(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "real")
	writeTree(t, realDir, "a.pdf", "sub/b.docx")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(realDir, link))
	out := filepath.Join(dir, "out")

	eng := &fakeEngine{}
	sum := runOK(t, config(link, out), eng)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, link, sum.Source)
	assert.FileExists(t, filepath.Join(out, "a.md"))
	assert.FileExists(t, filepath.Join(out, "sub", "b.md"))
}

func TestRun_SharedOutputNameWarns(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "a.docx", "a.pdf", "b.pdf")

	for _, jobs := range []int{1, 3} {
		var buf bytes.Buffer
		cfg := config(src, out)
		cfg.Jobs = jobs
		eng := &fakeEngine{delay: time.Millisecond}
		sum, err := Run(context.Background(), cfg, Deps{
			Converter: convert.NewInvoker(eng, nil),
			Logger:    log.New(&buf),
		})
		require.NoError(t, err)

		assert.Equal(t, 3, sum.Succeeded, "jobs=%d", jobs)
		assert.Equal(t, 1, strings.Count(buf.String(), "share an output name"), "jobs=%d", jobs)
		assert.Contains(t, buf.String(), filepath.Join(src, "a.pdf"))
	}
}

func TestByOutputName(t *testing.T) {
	task := func(dir, src string) types.ConversionTask {
		return types.ConversionTask{SourcePath: src, DestinationDir: dir}
	}
	groups := byOutputName([]types.ConversionTask{
		task("/o", "/s/a.docx"),
		task("/o", "/s/b.pdf"),
		task("/o", "/s/a.pdf"),
		task("/o/sub", "/s/sub/a.pdf"),
	})

	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, "/s/a.pdf", groups[0][1].SourcePath)
	assert.Len(t, groups[1], 1)
	assert.Len(t, groups[2], 1)
}

func TestRun_MissingSourceWritesNothing(t *testing.T) {
	parent := t.TempDir()
	out := filepath.Join(parent, "out")

	var states []State
	_, err := Run(context.Background(), config(filepath.Join(parent, "missing"), out), Deps{
		Converter: convert.NewInvoker(&fakeEngine{}, nil),
		OnState:   func(s State) { states = append(states, s) },
	})

	var setupErr *types.SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.NoDirExists(t, out)
	assert.Equal(t, []State{Idle, Aborted}, states)
}

func TestRun_UnwritableOutput(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, "a.pdf")
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Run(context.Background(), config(src, filepath.Join(blocker, "out")), Deps{
		Converter: convert.NewInvoker(&fakeEngine{}, nil),
	})

	var setupErr *types.SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, "create output", setupErr.Op)
}

func TestRun_EmptyTree(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "readme.exe")

	var states []State
	sum, err := Run(context.Background(), config(src, out), Deps{
		Converter: convert.NewInvoker(&fakeEngine{}, nil),
		OnState:   func(s State) { states = append(states, s) },
	})
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.Equal(t, []State{Idle, Walking, Converting, Reporting, Done}, states)
}

func TestRun_OutputInsideSourceIsNotInput(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, "a.pdf")
	out := filepath.Join(src, "output")
	runOK(t, config(src, out), &fakeEngine{})

	eng := &fakeEngine{}
	sum := runOK(t, config(src, out), eng)

	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, []string{filepath.Join(src, "a.pdf")}, eng.calls)
}

func TestRun_SingleFileSource(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "sub/a.pdf")

	sum := runOK(t, config(filepath.Join(src, "sub", "a.pdf"), out), &fakeEngine{})

	assert.Equal(t, 1, sum.Succeeded)
	assert.FileExists(t, filepath.Join(out, "a.md"))
}

func TestRun_TimeoutFailsOnlyThatFile(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "a.pdf", "b.pdf")

	cfg := config(src, out)
	cfg.Timeout = 20 * time.Millisecond
	eng := &slowOnce{fakeEngine: &fakeEngine{}, slow: "a.pdf"}
	sum, err := Run(context.Background(), cfg, Deps{Converter: convert.NewInvoker(eng, nil)})
	require.NoError(t, err)

	require.Len(t, sum.Failures, 1)
	assert.Equal(t, filepath.Join(src, "a.pdf"), sum.Failures[0].Task.SourcePath)
	assert.Equal(t, 1, sum.Succeeded)
}

// slowOnce blocks on one file until its context expires.
type slowOnce struct {
	*fakeEngine
	slow string
}

func (s *slowOnce) Convert(ctx context.Context, req engine.Request) (engine.Response, error) {
	if filepath.Base(req.Source) == s.slow {
		<-ctx.Done()
		return engine.Response{ExitCode: -1}, errors.New("timed out")
	}
	return s.fakeEngine.Convert(ctx, req)
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	rels := []string{"a.pdf", "b.pdf", "c/d.pdf", "c/e.docx", "f/g/h.txt", "f/i.png", "j.md", "k.xlsx"}
	fail := map[string]bool{"d.pdf": true, "h.txt": true, "k.xlsx": true}

	src := t.TempDir()
	writeTree(t, src, rels...)

	seqOut := t.TempDir()
	seq := runOK(t, config(src, seqOut), &fakeEngine{fail: fail})

	parCfg := config(src, t.TempDir())
	parCfg.Jobs = 4
	par := runOK(t, parCfg, &fakeEngine{fail: fail, delay: time.Millisecond})

	assert.Equal(t, seq.Total, par.Total)
	assert.Equal(t, seq.Succeeded, par.Succeeded)
	assert.Equal(t, seq.Failed, par.Failed)
	assert.Equal(t, seq.FailureList(), par.FailureList())

	seqReport, err := os.ReadFile(seq.ReportPath)
	require.NoError(t, err)
	parReport, err := os.ReadFile(par.ReportPath)
	require.NoError(t, err)
	assert.Equal(t, string(seqReport), string(parReport))
}

func TestRun_CancelledRecordsRemaining(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, "a.pdf", "b.pdf", "c.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	eng := &fakeEngine{}
	var seen int
	sum, err := Run(ctx, config(src, out), Deps{
		Converter: convert.NewInvoker(eng, nil),
		OnResult: func(types.ConversionResult) {
			seen++
			cancel()
		},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 1, eng.callCount())
	assert.Equal(t, 2, sum.Failed)
	for _, f := range sum.Failures {
		assert.True(t, errors.Is(f.Err, ErrCancelled))
	}
	assert.FileExists(t, sum.ReportPath)
}

type recordingObserver struct {
	mu      sync.Mutex
	total   int
	started int
	done    int
}

func (o *recordingObserver) Begin(total int) { o.total = total }

func (o *recordingObserver) Started(types.ConversionTask) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) Done(types.ConversionResult) {
	o.mu.Lock()
	o.done++
	o.mu.Unlock()
}

func TestRun_NotifiesObserver(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeTree(t, src, tree...)
	obs := &recordingObserver{}

	cfg := config(src, out)
	cfg.Jobs = 2
	_, err := Run(context.Background(), cfg, Deps{
		Converter: convert.NewInvoker(&fakeEngine{}, nil),
		Observer:  obs,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, obs.total)
	assert.Equal(t, 4, obs.started)
	assert.Equal(t, 4, obs.done)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "converting", Converting.String())
	assert.True(t, strings.HasPrefix(State(42).String(), "state("))
}
