package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/queue"
)

// jobsCmd shows the split queue. Failed splits are only visible here and in the logs.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show queued, running and finished split jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := cmd.Flags().GetString("status")
		if err != nil {
			return err
		}
		switch queue.Status(status) {
		case "", queue.StatusPending, queue.StatusRunning, queue.StatusDone, queue.StatusFailed:
		default:
			return fmt.Errorf("unknown status %q, expected pending, running, done or failed", status)
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		q, err := openQueue()
		if err != nil {
			return err
		}
		defer q.Close()

		stats, err := q.Stats(cmd.Context())
		if err != nil {
			return err
		}
		jobs, err := q.List(cmd.Context(), queue.Status(status), limit)
		if err != nil {
			return err
		}

		printJobs(cmd.OutOrStdout(), stats, jobs)
		return nil
	},
}

func init() {
	jobsCmd.Flags().String("status", "", "Only show jobs in this status")
	jobsCmd.Flags().Int("limit", 20, "Maximum number of jobs to show")
}

func printJobs(out io.Writer, stats queue.Stats, jobs []queue.Job) {
	fmt.Fprintf(out, "pending=%d running=%d done=%d failed=%d\n",
		stats.Pending, stats.Running, stats.Done, stats.Failed)

	for _, j := range jobs {
		enqueued := time.UnixMilli(j.EnqueuedAt).Format(time.DateTime)
		line := fmt.Sprintf("%s\t%s\t%s\t%s\tattempts=%d", j.ID, j.Issue, j.Status, enqueued, j.Attempts)
		if j.LastError != "" {
			line += "\t" + j.LastError
		}
		fmt.Fprintln(out, line)
	}
}
