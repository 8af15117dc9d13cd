// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/container"
	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/engine"
	"github.com/pdiddy/docbatch/internal/history"
	"github.com/pdiddy/docbatch/internal/pipeline"
	"github.com/pdiddy/docbatch/internal/progress"
	"github.com/pdiddy/docbatch/internal/report"
	"github.com/pdiddy/docbatch/pkg/types"
)

// newLogger builds the CLI logger writing to w.
func newLogger(w io.Writer, cfg types.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "docbatch",
		Level:           level,
		ReportTimestamp: cfg.Format == "json",
	})
	if cfg.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger, nil
}

// detectRuntime is replaced in tests.
var detectRuntime = container.DetectRuntime

// newEngine returns the configured engine backend.
func newEngine(cfg types.EngineConfig) (engine.Engine, error) {
	switch cfg.Backend {
	case types.BackendContainer:
		rt, err := detectRuntime()
		if err != nil {
			return nil, &types.SetupError{Op: "detect container runtime", Path: cfg.Image, Err: err}
		}
		return engine.NewContainer(rt, cfg.Image), nil
	default:
		return engine.NewDocling(cfg.Binary), nil
	}
}

// runFlags are the per-invocation switches that are not config keys.
type runFlags struct {
	summaryPath string
	noProgress  bool
	quiet       bool
	noHistory   bool
}

func readRunFlags(cmd *cobra.Command) runFlags {
	var f runFlags
	f.summaryPath, _ = cmd.Flags().GetString("summary")
	f.noProgress, _ = cmd.Flags().GetBool("no-progress")
	f.quiet, _ = cmd.Flags().GetBool("quiet")
	f.noHistory, _ = cmd.Flags().GetBool("no-history")
	return f
}

// convertTree runs the pipeline for cfg with console progress, then
// exports the summary, records history, and prints the totals. Per-file
// failures do not produce an error.
func convertTree(ctx context.Context, cmd *cobra.Command, cfg types.Config, flags runFlags) error {
	reporter := progress.New(cmd.ErrOrStderr(), progress.Options{Plain: flags.noProgress, Quiet: flags.quiet})
	logger, err := newLogger(reporter, cfg.Log)
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg.Engine)
	if err != nil {
		return err
	}

	logger.Debug("starting run", "source", cfg.Conversion.Source, "output", cfg.Conversion.Output,
		"engine", eng.Name(), "jobs", cfg.Conversion.Jobs)
	summary, runErr := pipeline.Run(ctx, cfg.Conversion, pipeline.Deps{
		Converter: convert.NewInvoker(eng, logger),
		Logger:    logger,
		Observer:  reporter,
	})
	reporter.Finish()

	var setupErr *types.SetupError
	if errors.As(runErr, &setupErr) {
		return runErr
	}

	if !flags.noHistory {
		recordHistory(context.WithoutCancel(ctx), cfg.History, summary, logger)
	}
	if flags.summaryPath != "" {
		if err := report.WriteSummary(flags.summaryPath, summary); err != nil {
			return err
		}
		logger.Info("summary written", "path", flags.summaryPath)
	}

	printSummary(cmd.OutOrStdout(), summary)
	return runErr
}

// recordHistory stores summary in the history database. Failures are
// logged and never change the run outcome.
func recordHistory(ctx context.Context, cfg types.HistoryConfig, summary types.RunSummary, logger *log.Logger) {
	if !cfg.Enabled {
		return
	}
	store, err := openHistory(cfg)
	if err != nil {
		logger.Warn("history unavailable", "err", err)
		return
	}
	defer store.Close()

	id, err := store.Record(ctx, summary)
	if err != nil {
		logger.Warn("recording history", "err", err)
		return
	}
	logger.Debug("run recorded", "id", id)
}

func openHistory(cfg types.HistoryConfig) (*history.Store, error) {
	path := cfg.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func printSummary(w io.Writer, s types.RunSummary) {
	converted := s.Succeeded - s.Skipped
	parts := []string{
		SuccessStyle.Render(fmt.Sprintf("%d converted", converted)),
		MutedStyle.Render(fmt.Sprintf("%d skipped", s.Skipped)),
	}
	if s.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", s.Failed)))
	} else {
		parts = append(parts, MutedStyle.Render("0 failed"))
	}
	fmt.Fprintf(w, "%s  %s\n", strings.Join(parts, ", "),
		MutedStyle.Render(fmt.Sprintf("(%d files in %s)", s.Total, s.Duration().Round(time.Millisecond))))

	if s.Total == 0 {
		fmt.Fprintln(w, WarningStyle.Render("No supported files found."))
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("Failure report:"), s.ReportPath)
	}
}
