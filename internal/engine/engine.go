// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine launches the external document-conversion engine (Docling)
// for one source file at a time. The engine is a black box: it is handed a
// source path, an output directory, a format, and a verbosity flag, and
// reports back an exit status and its console output.
package engine

import (
	"context"
	"errors"
)

// ErrNotInstalled reports that the engine binary or image cannot be found.
var ErrNotInstalled = errors.New("conversion engine not installed")

// Request is one engine invocation.
type Request struct {
	Source    string
	OutputDir string
	// Format is passed as --to when non-empty.
	Format  string
	Verbose bool
}

// Response carries what the engine reported.
type Response struct {
	// ExitCode is the process exit status, -1 if it never exited normally.
	ExitCode int
	// Output is the combined stdout and stderr.
	Output string
}

// Engine converts one document. Implementations must be safe for
// concurrent use; each Convert call is independent.
type Engine interface {
	// Name identifies the backend in logs ("docling", "docker:docling:latest").
	Name() string

	// Check verifies the engine can be launched at all.
	Check(ctx context.Context) error

	// Convert runs the engine for req. A non-nil error means the engine
	// failed on this file; the Response still carries any captured output.
	Convert(ctx context.Context, req Request) (Response, error)
}

// Args builds the docling command line for req.
func Args(req Request) []string {
	args := make([]string, 0, 6)
	if req.Format != "" {
		args = append(args, "--to", req.Format)
	}
	if req.Verbose {
		args = append(args, "-v")
	}
	return append(args, "--output", req.OutputDir, req.Source)
}
