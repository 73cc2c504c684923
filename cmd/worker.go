package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/internal/queue"
	"github.com/danielolaszy/sprintsplit/internal/split"
)

// workerCmd consumes the split queue.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the split queue",
	Long: `Consume the split queue and split each queued issue.

A failed split is logged and recorded as failed on its job; it is not retried.
A job whose worker died is delivered again once its lease expires.

Use --drain to process the jobs already queued and exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, err := cmd.Flags().GetInt("workers")
		if err != nil {
			return err
		}
		if workers <= 0 {
			workers = cfg.Queue.Workers
		}
		drain, err := cmd.Flags().GetBool("drain")
		if err != nil {
			return err
		}

		client, err := newJiraClient()
		if err != nil {
			return err
		}

		q, err := openQueue()
		if err != nil {
			return err
		}
		defer q.Close()

		consumer := queue.NewConsumer(q, split.Handler(split.New(client, cfg.Split)), workers, cfg.Queue.PollInterval)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if drain {
			n, err := consumer.Drain(ctx)
			if err != nil {
				return fmt.Errorf("failed to drain queue: %w", err)
			}
			logging.Info("queue drained", "jobs", n)
			return nil
		}

		return consumer.Run(ctx)
	},
}

func init() {
	workerCmd.Flags().Int("workers", 0, "Number of concurrent workers (overrides queue.workers)")
	workerCmd.Flags().Bool("drain", false, "Process queued jobs and exit")
}
