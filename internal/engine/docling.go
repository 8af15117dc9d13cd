// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultBinary = "docling"
	checkTimeout  = 10 * time.Second
	// waitDelay bounds how long Wait blocks on output pipes held open by
	// grandchildren after the engine process is killed.
	waitDelay = 2 * time.Second
)

var (
	execCommandContext = exec.CommandContext
	execLookPath       = exec.LookPath
)

// Docling runs the docling CLI found on PATH (or at an explicit path).
type Docling struct {
	// Binary is the executable name or path. Empty means "docling".
	Binary string
}

// NewDocling returns a Docling engine for binary.
func NewDocling(binary string) *Docling {
	return &Docling{Binary: binary}
}

func (d *Docling) bin() string {
	if b := strings.TrimSpace(d.Binary); b != "" {
		return b
	}
	return defaultBinary
}

func (d *Docling) Name() string { return d.bin() }

// Check looks the binary up and runs it with --help.
func (d *Docling) Check(ctx context.Context) error {
	if _, err := execLookPath(d.bin()); err != nil {
		return fmt.Errorf("%w: %s not found on PATH (install with 'pip install docling'): %v",
			ErrNotInstalled, d.bin(), err)
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := execCommandContext(ctx, d.bin(), "--help").Run(); err != nil {
		return fmt.Errorf("running %s --help: %w", d.bin(), err)
	}
	return nil
}

// Convert runs docling for one file and captures its combined output.
func (d *Docling) Convert(ctx context.Context, req Request) (Response, error) {
	cmd := execCommandContext(ctx, d.bin(), Args(req)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	resp := Response{ExitCode: exitCode(cmd), Output: out.String()}
	if err == nil {
		return resp, nil
	}
	return resp, classify(ctx, d.bin(), err)
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// classify turns an exec failure into an error naming its cause. Context
// errors take precedence because a killed process also reports an ExitError.
func classify(ctx context.Context, bin string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%s timed out: %w", bin, ctxErr)
		}
		return fmt.Errorf("%s interrupted: %w", bin, ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s not found on PATH: %v", ErrNotInstalled, bin, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited with status %d: %w", bin, exitErr.ExitCode(), err)
	}
	return fmt.Errorf("running %s: %w", bin, err)
}
