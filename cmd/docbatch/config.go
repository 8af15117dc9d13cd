// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/engine"
	"github.com/pdiddy/docbatch/pkg/types"
)

const defaultOutput = "docling-output"

func setDefaults() {
	viper.SetDefault("output", defaultOutput)
	viper.SetDefault("jobs", 1)
	viper.SetDefault("engine.backend", string(types.BackendCLI))
	viper.SetDefault("engine.binary", "docling")
	viper.SetDefault("engine.image", engine.DefaultImage)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("web.addr", ":8501")
	viper.SetDefault("web.max_jobs", 2)
	viper.SetDefault("web.archive_retention", time.Hour)
}

// addConversionFlags registers the flags shared by convert and interactive.
func addConversionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", defaultOutput, "output root the source tree is mirrored into")
	f.String("to", "", "docling output format (md, json, html, text, doctags); empty uses docling's default")
	f.Bool("skip-existing", false, "skip files whose destination already holds artifacts")
	f.BoolP("verbose", "v", false, "show docling's own output for every file")
	f.IntP("jobs", "j", 1, "number of files converted at once")
	f.Duration("timeout", 0, "limit for a single docling invocation (0 = no limit)")
	f.StringSlice("extra-extensions", nil, "additional file extensions to convert")
	f.String("summary", "", "write a run summary to FILE (.yaml/.yml for YAML, JSON otherwise)")
	f.Bool("no-progress", false, "print plain status lines instead of a progress bar")
	f.BoolP("quiet", "q", false, "with plain output, omit per-file status lines")
	f.Bool("no-history", false, "do not record this run in the history database")
}

// bindFlags binds the running command's flags to config keys. Binding
// happens at run time because convert and interactive share key names.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", flag, err)
			}
		}
	}
	return nil
}

var conversionKeys = map[string]string{
	"output":           "output",
	"to":               "to",
	"skip-existing":    "skip_existing",
	"verbose":          "verbose",
	"jobs":             "jobs",
	"timeout":          "timeout",
	"extra-extensions": "extra_extensions",
}

// loadConfig assembles the effective configuration from flags, the
// environment, the config file, and defaults.
func loadConfig() (types.Config, error) {
	cfg := types.Config{
		Conversion: types.ConversionConfig{
			ConversionOptions: types.ConversionOptions{
				Format:       viper.GetString("to"),
				SkipExisting: viper.GetBool("skip_existing"),
				Verbose:      viper.GetBool("verbose"),
				Timeout:      viper.GetDuration("timeout"),
			},
			Output:          viper.GetString("output"),
			Jobs:            viper.GetInt("jobs"),
			ExtraExtensions: viper.GetStringSlice("extra_extensions"),
		},
		Engine: types.EngineConfig{
			Backend: types.EngineBackend(viper.GetString("engine.backend")),
			Binary:  viper.GetString("engine.binary"),
			Image:   viper.GetString("engine.image"),
		},
		History: types.HistoryConfig{
			Enabled: viper.GetBool("history.enabled"),
			Path:    viper.GetString("history.path"),
		},
		Log: types.LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
		Web: types.WebConfig{
			Addr:             viper.GetString("web.addr"),
			MaxJobs:          viper.GetInt("web.max_jobs"),
			ArchiveDir:       viper.GetString("web.archive_dir"),
			ArchiveRetention: viper.GetDuration("web.archive_retention"),
		},
	}
	return cfg, validate(cfg)
}

func validate(cfg types.Config) error {
	if cfg.Conversion.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", cfg.Conversion.Jobs)
	}
	if cfg.Conversion.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", cfg.Conversion.Timeout)
	}
	if cfg.Conversion.Output == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	switch cfg.Engine.Backend {
	case types.BackendCLI, types.BackendContainer:
	default:
		return fmt.Errorf("unknown engine backend %q (want cli or container)", cfg.Engine.Backend)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", cfg.Log.Format)
	}
	return nil
}
