package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/convert"
	"github.com/pdiddy/docbatch/internal/pipeline"
	"github.com/pdiddy/docbatch/internal/web"
	"github.com/pdiddy/docbatch/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser front end",
	Long: `Serve starts a web server with a form for converting a directory on
this machine and an upload form that returns the converted files as a
zip archive. Job status is also available as JSON under /jobs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveKeys = map[string]string{
	"addr":        "web.addr",
	"max-jobs":    "web.max_jobs",
	"archive-dir": "web.archive_dir",
	"output":      "output",
	"to":          "to",
	"jobs":        "jobs",
	"timeout":     "timeout",
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, serveKeys); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg.Engine)
	if err != nil {
		return err
	}

	runner := web.RunnerFunc(func(ctx context.Context, conv types.ConversionConfig, obs pipeline.Observer) (types.RunSummary, error) {
		summary, err := pipeline.Run(ctx, conv, pipeline.Deps{
			Converter: convert.NewInvoker(eng, logger),
			Logger:    logger,
			Observer:  obs,
		})
		if err == nil {
			recordHistory(context.WithoutCancel(ctx), cfg.History, summary, logger)
		}
		return summary, err
	})

	gin.SetMode(gin.ReleaseMode)
	srv, err := web.NewServer(cfg.Web, cfg.Conversion, runner, eng, logger)
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", ":8501", "listen address")
	f.Int("max-jobs", 2, "conversion jobs allowed to run at once")
	f.String("archive-dir", "", "directory for zip archives of uploaded conversions (default: system temp)")
	f.StringP("output", "o", defaultOutput, "default output root for directory jobs")
	f.String("to", "", "default docling output format")
	f.IntP("jobs", "j", 1, "files converted at once within a job")
	f.Duration("timeout", 0, "limit for a single docling invocation (0 = no limit)")

	rootCmd.AddCommand(serveCmd)
}
