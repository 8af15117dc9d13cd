// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns one ConversionTask into one ConversionResult by
// handing the source file to the conversion engine. Every failure is
// captured in the result; nothing here aborts a run.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pdiddy/docbatch/internal/engine"
	"github.com/pdiddy/docbatch/pkg/types"
)

// ErrNoArtifacts is the failure recorded when the engine exits cleanly but
// writes nothing for the source file.
var ErrNoArtifacts = errors.New("engine produced no artifacts")

// Invoker runs the engine for individual tasks.
type Invoker struct {
	engine engine.Engine
	logger *log.Logger
}

// NewInvoker returns an Invoker backed by e. A nil logger discards output.
func NewInvoker(e engine.Engine, logger *log.Logger) *Invoker {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Invoker{engine: e, logger: logger}
}

// Convert converts a single source file into its destination directory.
// With SkipExisting set and artifacts for the source already present, the
// engine is not invoked and the result is ConversionSkipped.
func (inv *Invoker) Convert(ctx context.Context, task types.ConversionTask) (res types.ConversionResult) {
	start := time.Now()
	res = types.ConversionResult{Task: task}
	defer func() {
		if r := recover(); r != nil {
			res.Status = types.ConversionFailed
			res.Err = &types.ConversionError{Path: task.SourcePath, ExitCode: -1, Err: fmt.Errorf("engine panic: %v", r)}
		}
		res.Duration = time.Since(start)
	}()

	if task.Options.SkipExisting {
		existing, err := Artifacts(task.DestinationDir, task.SourcePath)
		if err == nil && len(existing) > 0 {
			inv.logger.Debug("skipping, artifacts exist", "path", task.SourcePath, "artifacts", len(existing))
			res.Status = types.ConversionSkipped
			res.Artifacts = existing
			return res
		}
	}

	if err := os.MkdirAll(task.DestinationDir, 0o755); err != nil {
		return failed(res, &types.ConversionError{
			Path: task.SourcePath, ExitCode: -1,
			Err: fmt.Errorf("creating %s: %w", task.DestinationDir, err),
		})
	}

	before, err := readMatching(task.DestinationDir, task.SourcePath)
	if err != nil {
		return failed(res, &types.ConversionError{Path: task.SourcePath, ExitCode: -1, Err: err})
	}
	backdate(task.DestinationDir, before)
	defer restoreUntouched(task.DestinationDir, before)

	runCtx := ctx
	if task.Options.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, task.Options.Timeout)
		defer cancel()
	}

	inv.logger.Debug("converting", "path", task.SourcePath, "dest", task.DestinationDir, "engine", inv.engine.Name())
	resp, runErr := inv.engine.Convert(runCtx, engine.Request{
		Source:    task.SourcePath,
		OutputDir: task.DestinationDir,
		Format:    task.Options.Format,
		Verbose:   task.Options.Verbose,
	})
	res.EngineOutput = resp.Output
	if task.Options.Verbose && strings.TrimSpace(resp.Output) != "" {
		inv.logger.Info("engine output", "path", task.SourcePath, "output", strings.TrimRight(resp.Output, "\n"))
	}

	if runErr != nil {
		return failed(res, &types.ConversionError{
			Path: task.SourcePath, ExitCode: resp.ExitCode, Output: resp.Output, Err: runErr,
		})
	}
	if resp.ExitCode != 0 {
		return failed(res, &types.ConversionError{
			Path: task.SourcePath, ExitCode: resp.ExitCode, Output: resp.Output,
			Err: fmt.Errorf("%s exited with status %d", inv.engine.Name(), resp.ExitCode),
		})
	}

	produced, err := changedSince(task.DestinationDir, task.SourcePath, before)
	if err != nil {
		return failed(res, &types.ConversionError{Path: task.SourcePath, Output: resp.Output, Err: err})
	}
	if len(produced) == 0 {
		return failed(res, &types.ConversionError{Path: task.SourcePath, Output: resp.Output, Err: ErrNoArtifacts})
	}

	res.Status = types.ConversionDone
	res.Artifacts = produced
	return res
}

func failed(res types.ConversionResult, err error) types.ConversionResult {
	res.Status = types.ConversionFailed
	res.Err = err
	return res
}

// Artifacts lists entries in dir that belong to source, using docling's
// naming: the bare stem, "<stem>.<ext>" with a single extension, and
// "<stem>_artifacts". The source file itself is never counted. A missing
// dir yields no artifacts.
func Artifacts(dir, source string) ([]string, error) {
	entries, err := readMatching(dir, source)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for name := range entries {
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

type entryState struct {
	modTime time.Time
	size    int64

	// original is the modification time before backdate, zero when the
	// entry was not backdated.
	original time.Time
}

// staleTime is stamped on existing artifacts before the engine runs so a
// rewrite shows up even where mtime resolution is coarse.
var staleTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// backdate stamps staleTime on the entries in before and records the time
// the filesystem actually stored.
func backdate(dir string, before map[string]entryState) {
	for name, st := range before {
		path := filepath.Join(dir, name)
		if err := os.Chtimes(path, staleTime, staleTime); err != nil {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		before[name] = entryState{modTime: info.ModTime(), size: st.size, original: st.modTime}
	}
}

// restoreUntouched puts back the original times of backdated entries the
// engine did not rewrite.
func restoreUntouched(dir string, before map[string]entryState) {
	for name, st := range before {
		if st.original.IsZero() {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Equal(st.modTime) {
			continue
		}
		_ = os.Chtimes(path, st.original, st.original)
	}
}

// changedSince returns artifacts that are new or modified relative to before.
func changedSince(dir, source string, before map[string]entryState) ([]string, error) {
	after, err := readMatching(dir, source)
	if err != nil {
		return nil, err
	}
	var out []string
	for name, st := range after {
		prev, ok := before[name]
		if !ok || !prev.modTime.Equal(st.modTime) || prev.size != st.size {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func readMatching(dir, source string) (map[string]entryState, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]entryState{}, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	stem := Stem(source)
	self := filepath.Clean(source)
	out := make(map[string]entryState)
	for _, e := range entries {
		name := e.Name()
		if !belongsTo(name, stem) || filepath.Join(dir, name) == self {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[name] = entryState{modTime: info.ModTime(), size: info.Size()}
	}
	return out, nil
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func belongsTo(name, stem string) bool {
	rest, ok := strings.CutPrefix(name, stem)
	if !ok {
		return false
	}
	if rest == "" || rest == "_artifacts" {
		return true
	}
	ext, ok := strings.CutPrefix(rest, ".")
	return ok && ext != "" && !strings.Contains(ext, ".")
}
