package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// enqueueCmd pushes issues to the split queue without the review page.
var enqueueCmd = &cobra.Command{
	Use:   "enqueue ISSUE-KEY...",
	Short: "Queue issues for splitting",
	Long: `Queue issues for splitting.

All keys are pushed in one batch. Issues that already have a pending or running
job are skipped.

Example:
  sprintsplit enqueue ISS-1 ISS-7`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := normalizeKeys(args)
		if err != nil {
			return err
		}

		q, err := openQueue()
		if err != nil {
			return err
		}
		defer q.Close()

		n, err := q.Push(cmd.Context(), models.NewSplitJobs(keys))
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Queued %d of %d issues on %s\n", n, len(keys), q.Name())
		return nil
	},
}

// normalizeKeys upper-cases and de-duplicates issue keys, keeping their order.
func normalizeKeys(args []string) ([]string, error) {
	seen := make(map[string]bool, len(args))
	keys := make([]string, 0, len(args))
	for _, arg := range args {
		key := strings.ToUpper(strings.TrimSpace(arg))
		if key == "" {
			return nil, fmt.Errorf("empty issue key")
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
