package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/prompt"
)

var convertCmd = &cobra.Command{
	Use:   "convert [source]",
	Short: "Convert a file or directory tree with Docling",
	Long: `Convert hands every supported file under source to Docling and writes
the results under the output root, mirroring source's subdirectories.
Files that fail are listed in failed_conversions.txt at the output root.

The exit status is 0 once the run completes, even when some files failed.
It is 1 when the source is missing or the output root cannot be written.
Without a source argument you are asked for a directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, conversionKeys); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		cfg.Conversion.Source = args[0]
	} else {
		src, err := prompt.SourceDir(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg.Conversion.Source = src
	}

	return convertTree(cmd.Context(), cmd, cfg, readRunFlags(cmd))
}

func init() {
	addConversionFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}
