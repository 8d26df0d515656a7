package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/flinkwatch/internal/db"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyOutput string
	historyPurge  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [jid]",
	Short: "Show recorded state changes",
	Long: `Show the state changes recorded by flinkwatch-server in SurrealDB.

Without a job ID, lists every recorded job with its snapshot count.

Examples:
  flinkwatch history                  # Jobs with recorded snapshots
  flinkwatch history 4f7c... -n 10    # Last 10 changes of one job
  flinkwatch history 4f7c... --purge  # Delete the recorded changes of one job`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if historyPurge && len(args) == 0 {
			return fmt.Errorf("--purge requires a job ID")
		}
		return validateFormat(historyOutput)
	},
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", db.DefaultHistoryLimit, "max snapshots")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", formatTable, "output format: table, json or yaml")
	historyCmd.Flags().BoolVar(&historyPurge, "purge", false, "delete the snapshots of the job")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := storeClient(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		jobs, err := store.ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("list recorded jobs: %w", err)
		}
		return writeSummaries(out, historyOutput, jobs)
	}

	jid := args[0]
	if historyPurge {
		n, err := store.DeleteSnapshots(ctx, jid)
		if err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		fmt.Fprintf(out, "Deleted %d snapshots of job %s\n", n, jid)
		return nil
	}

	snaps, err := store.ListSnapshots(ctx, jid, historyLimit)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	return writeSnapshots(out, historyOutput, snaps)
}
