// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// SetupError is a fatal problem detected before any conversion starts:
// a missing or unreadable source root, or an output root that cannot be
// created or written.
type SetupError struct {
	Op   string
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ConversionError describes the engine failing on a single file. It is
// recorded in the file's result and never aborts the run.
type ConversionError struct {
	Path string
	// ExitCode is the engine's exit status, or -1 when it never ran to
	// completion (missing binary, timeout, cancellation).
	ExitCode int
	// Output is the engine's captured output, used as the failure reason.
	Output string
	Err    error
}

func (e *ConversionError) Error() string {
	var b strings.Builder
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, "exit status %d", e.ExitCode)
	} else if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("conversion failed")
	}
	if line := lastLine(e.Output); line != "" {
		b.WriteString(": ")
		b.WriteString(line)
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error { return e.Err }

// lastLine returns the last non-empty line of s. Engines print their fatal
// message last, after progress and warnings.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
