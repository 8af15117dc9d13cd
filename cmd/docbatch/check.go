package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/formats"
	"github.com/pdiddy/docbatch/pkg/types"
)

const checkTimeout = 30 * time.Second

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the conversion engine is installed",
	Long: `Check runs the configured engine's installation check and lists the
file extensions docbatch converts. It exits non-zero when the engine is
unavailable.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg.Engine)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	if err := eng.Check(ctx); err != nil {
		fmt.Fprintf(out, "%s %s\n", ErrorStyle.Render("✗"), eng.Name())
		if cfg.Engine.Backend == types.BackendCLI {
			fmt.Fprintln(out, MutedStyle.Render("Install with: pip install docling"))
		}
		return err
	}
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("✓"), eng.Name())
	fmt.Fprintf(out, "%s %s\n", MutedStyle.Render("Supported:"), strings.Join(formats.List(), ", "))
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
