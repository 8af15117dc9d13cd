// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docbatch CLI. docbatch converts
// every supported document under a directory tree with Docling, mirroring
// the tree into an output root and reporting the files that failed.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the docbatch CLI.
var rootCmd = &cobra.Command{
	Use:   "docbatch",
	Short: "Batch-convert document trees with Docling",
	Long: `docbatch walks a file or directory, hands every supported document to
the Docling converter, and mirrors the source tree into an output root.
Files that fail are listed in failed_conversions.txt at the output root;
one bad file never stops the run.

Use convert for scripted runs, interactive to be asked for the directory,
and serve for the browser front end.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./docbatch.yaml or ~/.config/docbatch/docbatch.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("engine", "cli", "engine backend: cli (docling on PATH) or container")
	pf.String("image", "", "container image for the container backend")

	bindRootFlags()
}

func bindRootFlags() {
	pf := rootCmd.PersistentFlags()
	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
	viper.BindPFlag("engine.backend", pf.Lookup("engine"))
	viper.BindPFlag("engine.image", pf.Lookup("image"))
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docbatch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docbatch"))
		}
	}

	viper.SetEnvPrefix("DOCBATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
