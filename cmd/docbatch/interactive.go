package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/prompt"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Ask for a directory, then convert it",
	Long: `Interactive asks which directory to convert, checks that it exists, and
runs the same conversion as convert. Results go to <directory>/output
unless an output root is set by --output, DOCBATCH_OUTPUT, or the config
file.`,
	Args: cobra.NoArgs,
	RunE: runInteractive,
}

func runInteractive(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, conversionKeys); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintln(out, TitleStyle.Render("docbatch interactive conversion"))

	var src string
	if in, ok := cmd.InOrStdin().(*os.File); ok {
		src, err = prompt.Interactive(in, out)
	} else {
		src, err = prompt.SourceDir(cmd.InOrStdin(), out)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, SuccessStyle.Render("Selected:"), src)

	cfg.Conversion.Source = src
	if !outputConfigured(cmd) {
		cfg.Conversion.Output = filepath.Join(src, "output")
	}
	return convertTree(cmd.Context(), cmd, cfg, readRunFlags(cmd))
}

// outputConfigured reports whether the output root was set explicitly
// rather than left at its default. viper.IsSet also counts defaults.
func outputConfigured(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("output") || viper.InConfig("output") {
		return true
	}
	_, ok := os.LookupEnv("DOCBATCH_OUTPUT")
	return ok
}

func init() {
	addConversionFlags(interactiveCmd)
	rootCmd.AddCommand(interactiveCmd)
}
