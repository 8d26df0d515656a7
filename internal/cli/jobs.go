package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var jobsOutput string

var jobsCmd = &cobra.Command{
	Use:   "jobs [jid]",
	Short: "List or inspect Flink jobs",
	Long: `List all jobs of the cluster or inspect a specific job by ID.

Records that fail to decode are reported and skipped unless strict mode is
enabled in the config.

Examples:
  flinkwatch jobs                    # List all jobs
  flinkwatch jobs 4f7c...            # Show details for one job
  flinkwatch jobs -o yaml            # Dump the decoded overview as YAML`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(jobsOutput)
	},
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVarP(&jobsOutput, "output", "o", formatTable, "output format: table, json or yaml")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	c := flinkClient()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		job, err := c.GetJob(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		return writeJob(out, jobsOutput, *job)
	}

	ov, err := c.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if err := writeJobs(out, jobsOutput, ov.Jobs); err != nil {
		return err
	}
	if jobsOutput == formatTable {
		writeRejected(cmd.ErrOrStderr(), ov.Rejected)
	}
	return nil
}
