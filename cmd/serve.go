package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/queue"
	"github.com/danielolaszy/sprintsplit/internal/review"
	"github.com/danielolaszy/sprintsplit/internal/split"
	"github.com/danielolaszy/sprintsplit/internal/web"
)

// serveCmd runs the sprint review page.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sprint review page",
	Long: `Serve the sprint review page.

The page lists the issues of a sprint in review statuses that can still be
split. Confirmed issues are pushed to the split queue as one batch.

With --with-worker the queue is also consumed in the same process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		withWorker, err := cmd.Flags().GetBool("with-worker")
		if err != nil {
			return err
		}
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
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

		service := review.NewService(client, q, cfg.Split)
		server, err := web.NewServer(cfg.Server, service, q)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var wg sync.WaitGroup
		if withWorker {
			consumer := queue.NewConsumer(q, split.Handler(split.New(client, cfg.Split)), cfg.Queue.Workers, cfg.Queue.PollInterval)
			wg.Add(1)
			go func() {
				defer wg.Done()
				consumer.Run(ctx)
			}()
		}

		err = server.Run(ctx)
		stop()
		wg.Wait()
		return err
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("with-worker", false, "Also consume the split queue")
}
