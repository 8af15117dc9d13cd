// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress renders conversion progress to the console. On a
// terminal it redraws a single progress bar line; anywhere else it prints
// one plain status line per finished file.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"

	"github.com/pdiddy/docbatch/pkg/types"
)

const (
	clearLine  = "\r\x1b[2K"
	barWidth   = 30
	maxNameLen = 40
)

// Options controls rendering.
type Options struct {
	// Plain forces status lines even on a terminal.
	Plain bool
	// Quiet suppresses per-file lines in plain mode. Failures are still
	// reported through the logger.
	Quiet bool
}

// Reporter tracks finished files against a total. It is also an io.Writer:
// text written through it (log lines) appears above the bar instead of
// being interleaved with it. Safe for concurrent use.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	quiet   bool
	bar     progress.Model
	total   int
	done    int
	failed  int
	current string
	drawn   bool
}

// New returns a Reporter writing to w. The bar is used only when w is a
// terminal and opts.Plain is false.
func New(w io.Writer, opts Options) *Reporter {
	return &Reporter{
		w:     w,
		tty:   !opts.Plain && IsTerminal(w),
		quiet: opts.Quiet,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
	}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Begin sets the number of files expected and draws the empty bar.
func (r *Reporter) Begin(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
	r.done = 0
	r.failed = 0
	r.redraw()
}

// Started marks a file as in flight; the bar shows its name.
func (r *Reporter) Started(task types.ConversionTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = task.RelPath
	r.redraw()
}

// Done records one finished result.
func (r *Reporter) Done(res types.ConversionResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	if !res.OK() {
		r.failed++
	}
	if r.tty {
		r.redraw()
		return
	}
	if r.quiet {
		return
	}
	fmt.Fprintf(r.w, "[%d/%d] %-9s %s\n", r.done, r.total, res.Status, displayName(res.Task))
}

// Finish ends the bar line so later output starts on a fresh line.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tty && r.drawn {
		r.current = ""
		r.redraw()
		fmt.Fprintln(r.w)
		r.drawn = false
	}
}

// Counts returns finished and failed counts so far.
func (r *Reporter) Counts() (done, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done, r.failed
}

// Write prints p above the bar.
func (r *Reporter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tty && r.drawn {
		io.WriteString(r.w, clearLine)
		r.drawn = false
	}
	n, err := r.w.Write(p)
	if r.tty && r.total > 0 {
		r.redraw()
	}
	return n, err
}

// redraw repaints the bar line. Callers hold r.mu.
func (r *Reporter) redraw() {
	if !r.tty || r.total == 0 {
		return
	}
	pct := float64(r.done) / float64(r.total)
	line := fmt.Sprintf("%s%s %d/%d", clearLine, r.bar.ViewAs(pct), r.done, r.total)
	if r.failed > 0 {
		line += fmt.Sprintf(" (%d failed)", r.failed)
	}
	if r.current != "" {
		line += " " + truncate(r.current, maxNameLen)
	}
	io.WriteString(r.w, line)
	r.drawn = true
}

func displayName(task types.ConversionTask) string {
	if task.RelPath != "" {
		return task.RelPath
	}
	return filepath.Base(task.SourcePath)
}

// truncate keeps the tail of s, which carries the file name.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
