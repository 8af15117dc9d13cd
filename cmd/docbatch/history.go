package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List earlier conversion runs",
	Long: `History lists recorded runs, newest first. Use --failures with a run
ID to show the files that failed in that run.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openHistory(cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("failures")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if runID != "" {
		fails, err := store.Failures(ctx, runID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, fails)
		}
		if len(fails) == 0 {
			fmt.Fprintln(out, "No failures recorded for this run.")
			return nil
		}
		for _, f := range fails {
			fmt.Fprintf(out, "%s: %s\n", f.Path, f.Reason)
		}
		return nil
	}

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(out, runs)
	}
	formatRuns(out, runs)
	return nil
}

func formatRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-16s  %6s  %6s  %6s  %s\n", "ID", "Started", "Total", "OK", "Failed", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-16s  %6d  %6d  %6d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Total, r.Succeeded, r.Failed, r.Source)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 = all)")
	historyCmd.Flags().String("failures", "", "show failures for the run with this ID")
	historyCmd.Flags().Bool("json", false, "print JSON")
	rootCmd.AddCommand(historyCmd)
}
