// Package cmd provides the command-line interface for sprintsplit.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/config"
	"github.com/danielolaszy/sprintsplit/internal/jira"
	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/internal/queue"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sprintsplit",
	Short: "Sprintsplit carries unfinished story points into the next sprint",
	Long: `Sprintsplit splits over-sized JIRA issues at the end of a sprint.

The original issue keeps one split step of story points (1 in "Pull Request",
0.5 in any other status) and a clone carrying the remainder is created, closed
and linked back to it.

Issues are picked on the review page (serve) and queued; the worker consumes
the queue and performs the splits.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}

		logging.Setup(os.Stderr, logging.LogLevel(loaded.Log.Level), logging.Format(loaded.Log.Format))
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(sprintsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(initCmd)
}

func newJiraClient() (*jira.Client, error) {
	client, err := jira.NewClient(cfg.Jira)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jira client: %w", err)
	}
	return client, nil
}

func openQueue() (*queue.Queue, error) {
	q, err := queue.Open(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to open split queue: %w", err)
	}
	return q, nil
}
