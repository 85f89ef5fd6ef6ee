package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bucketlint/bucketlint/history"
)

var (
	historyPath   string
	historyLimit  int
	historyOutput string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past validation runs",
	Long: `List validation runs recorded in a local history database,
newest first. Runs are recorded by validate --history and by watch
mode when a history path is configured.`,
	Example: `  bucketlint history --db ./runs.db            # List all runs
  bucketlint history --db ./runs.db --limit 10 # Last ten runs
  bucketlint history --db ./runs.db -o json    # Machine-readable`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyPath, "db", "./bucketlint.db", "History database path")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Maximum runs to list (0 = all)")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "table", "Output format: table, json")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if err := validOutput(historyOutput); err != nil {
		return err
	}

	store, err := history.Open(historyPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if historyOutput == outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	fmt.Printf("%-5s %-25s %-6s %8s %8s %8s %10s\n",
		"SEQ", "TIMESTAMP", "RESULT", "PASSED", "FAILED", "WARNED", "DURATION")
	for _, r := range runs {
		result := "PASS"
		if !r.OK {
			result = "FAIL"
		}
		fmt.Printf("%-5d %-25s %-6s %8d %8d %8d %8.1fms\n",
			r.Sequence, r.Timestamp.Format("2006-01-02 15:04:05 MST"),
			result, r.Passed, r.Failed, r.Warned, r.DurationMS)
	}
	return nil
}
