package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/jira"
	"github.com/danielolaszy/sprintsplit/internal/review"
	"github.com/danielolaszy/sprintsplit/pkg/models"
)

// sprintsCmd lists the sprints the review page offers.
var sprintsCmd = &cobra.Command{
	Use:   "sprints",
	Short: "List the active and future sprints of the board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := cmd.Flags().GetString("board")
		if err != nil {
			return err
		}
		boardID := cfg.Split.BoardID
		if board != "" {
			if boardID, err = jira.ParseBoardID(board); err != nil {
				return err
			}
		}

		client, err := newJiraClient()
		if err != nil {
			return err
		}

		sprints, err := client.GetBoardSprints(cmd.Context(), boardID, models.SprintActive, models.SprintFuture)
		if err != nil {
			return fmt.Errorf("failed to list sprints: %w", err)
		}

		printSprints(cmd.OutOrStdout(), sprints)
		return nil
	},
}

func init() {
	sprintsCmd.Flags().StringP("board", "b", "", "Board id (overrides split.board_id)")
}

// printSprints writes one line per sprint and marks the suggested next sprint.
func printSprints(out io.Writer, sprints []models.Sprint) {
	if len(sprints) == 0 {
		fmt.Fprintln(out, "No active or future sprints")
		return
	}

	next, hasNext := review.SuggestNextSprint(sprints)
	for _, s := range sprints {
		mark := ""
		if hasNext && s.ID == next {
			mark = "\t(suggested next)"
		}
		fmt.Fprintf(out, "%d\t%s\t%s%s\n", s.ID, s.State, s.Name, mark)
	}
}
