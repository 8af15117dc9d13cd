// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package walk enumerates convertible files under a source root and maps
// each one to its mirrored destination under an output root.
package walk

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/pdiddy/docbatch/internal/formats"
	"github.com/pdiddy/docbatch/pkg/types"
)

// Root describes a resolved source root.
type Root struct {
	// Path is the absolute, cleaned source path as given. Discovered files
	// are reported under it even when it is a symlink.
	Path string
	// IsDir is false when the source is a single file.
	IsDir bool

	// target is Path with symlinks resolved; the walk descends from here.
	target string
}

// Resolve makes source absolute and checks that it exists. A missing or
// unreadable source yields a *types.SetupError.
func Resolve(source string) (Root, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return Root{}, &types.SetupError{Op: "resolve source", Path: source, Err: err}
	}
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, &types.SetupError{Op: "stat source", Path: abs, Err: err}
	}
	st, err := os.Stat(target)
	if err != nil {
		return Root{}, &types.SetupError{Op: "stat source", Path: abs, Err: err}
	}
	return Root{Path: abs, IsDir: st.IsDir(), target: target}, nil
}

// Files returns a lazy sequence of absolute paths under root accepted by
// filter, in lexical order. Directories are descended recursively; files
// the filter rejects and non-regular entries are skipped without error.
//
// When root cannot be resolved the sequence yields a single *types.SetupError.
// A subdirectory that cannot be read yields its path with the read error and
// the walk continues with its siblings.
func Files(root string, filter formats.Filter) iter.Seq2[string, error] {
	if filter == nil {
		filter = formats.Supported
	}
	return func(yield func(string, error) bool) {
		r, err := Resolve(root)
		if err != nil {
			yield("", err)
			return
		}
		if !r.IsDir {
			if filter(r.Path) {
				yield(r.Path, nil)
			}
			return
		}

		walkErr := filepath.WalkDir(r.target, func(path string, d fs.DirEntry, err error) error {
			shown := r.display(path)
			if err != nil {
				if path == r.target {
					return &types.SetupError{Op: "read source", Path: r.Path, Err: err}
				}
				if !yield(shown, fmt.Errorf("reading %s: %w", shown, err)) {
					return filepath.SkipAll
				}
				return nil
			}
			if d.IsDir() || !filter(shown) || !isRegular(path, d) {
				return nil
			}
			if !yield(shown, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		var setupErr *types.SetupError
		if errors.As(walkErr, &setupErr) {
			yield("", setupErr)
		}
	}
}

// display maps a path under the resolved target back under Path.
func (r Root) display(path string) string {
	if r.target == r.Path {
		return path
	}
	rel, err := filepath.Rel(r.target, path)
	if err != nil {
		return path
	}
	return filepath.Join(r.Path, rel)
}

// isRegular accepts regular files and symlinks that resolve to one.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Planner turns discovered files into conversion tasks whose destination
// directories mirror the source tree under Output.
type Planner struct {
	Root    Root
	Output  string
	Options types.ConversionOptions
}

// Task builds the task for one file found under the planner's root.
func (p Planner) Task(path string) types.ConversionTask {
	task := types.ConversionTask{
		SourcePath:     path,
		DestinationDir: p.Output,
		RelPath:        filepath.Base(path),
		Options:        p.Options,
	}
	if !p.Root.IsDir {
		return task
	}
	rel, err := filepath.Rel(p.Root.Path, path)
	if err != nil {
		return task
	}
	task.RelPath = filepath.ToSlash(rel)
	if parent := filepath.Dir(rel); parent != "." {
		task.DestinationDir = filepath.Join(p.Output, parent)
	}
	return task
}

// Collect drains seq into tasks. Per-entry read errors are returned
// alongside the tasks; a *types.SetupError stops collection.
func (p Planner) Collect(seq iter.Seq2[string, error]) ([]types.ConversionTask, []error, error) {
	var (
		tasks []types.ConversionTask
		warns []error
	)
	for path, err := range seq {
		if err != nil {
			var setupErr *types.SetupError
			if errors.As(err, &setupErr) {
				return nil, warns, err
			}
			warns = append(warns, err)
			continue
		}
		tasks = append(tasks, p.Task(path))
	}
	return tasks, warns, nil
}
