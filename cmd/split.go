package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/logging"
	"github.com/danielolaszy/sprintsplit/internal/review"
	"github.com/danielolaszy/sprintsplit/internal/split"
)

// splitCmd splits issues directly, bypassing the queue.
var splitCmd = &cobra.Command{
	Use:   "split ISSUE-KEY...",
	Short: "Split issues immediately",
	Long: `Split issues immediately, without going through the queue.

Each issue is processed independently; a failure is reported and the next
issue is processed. With --dry-run the planned split is printed and nothing
is changed in JIRA.

Example:
  sprintsplit split ISS-1 ISS-2 --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return err
		}
		noProgress, err := cmd.Flags().GetBool("no-progress")
		if err != nil {
			return err
		}

		keys, err := normalizeKeys(args)
		if err != nil {
			return err
		}

		client, err := newJiraClient()
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		if !noProgress {
			description := "Splitting issues..."
			if dryRun {
				description = "Planning splits..."
			}
			bar = progressbar.NewOptions(len(keys),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWidth(15),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerPadding: "░",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}

		failed := runSplits(cmd.Context(), split.New(client, cfg.Split), keys, dryRun, cmd.OutOrStdout(), bar)
		if failed > 0 {
			return fmt.Errorf("%d of %d issues failed to split", failed, len(keys))
		}
		return nil
	},
}

func init() {
	splitCmd.Flags().Bool("dry-run", false, "Print the planned split without changing anything")
	splitCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

// splitRunner is the part of the splitter the command drives.
type splitRunner interface {
	Split(ctx context.Context, issueIDOrKey string) (*split.Result, error)
	Preview(ctx context.Context, issueIDOrKey string) (*split.Result, error)
}

// runSplits processes keys in order, writes one line per issue to out and
// returns the number of failures.
func runSplits(ctx context.Context, runner splitRunner, keys []string, dryRun bool, out io.Writer, bar *progressbar.ProgressBar) int {
	type outcome struct {
		key    string
		result *split.Result
		err    error
	}

	outcomes := make([]outcome, 0, len(keys))
	for _, key := range keys {
		var result *split.Result
		var err error
		if dryRun {
			result, err = runner.Preview(ctx, key)
		} else {
			result, err = runner.Split(ctx, key)
		}
		if err != nil {
			logging.Error("failed to split issue", "issue", key, "error", err)
		}
		outcomes = append(outcomes, outcome{key: key, result: result, err: err})

		if bar != nil {
			bar.Add(1)
		}
	}

	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Fprintf(out, "%s\tfailed: %v\n", o.key, o.err)
			continue
		}
		fmt.Fprintln(out, describeResult(o.result, dryRun))
	}
	return failed
}

func describeResult(r *split.Result, dryRun bool) string {
	verb := "split"
	if dryRun {
		verb = "would split"
	}

	points := fmt.Sprintf("%s -> %s points", review.FormatPoints(r.Previous), review.FormatPoints(r.Step))
	if !r.Cloned {
		return fmt.Sprintf("%s\t%s (%s), no clone", r.IssueKey, points, r.Status)
	}

	clone := r.CloneKey
	if clone == "" {
		clone = "clone"
	}
	return fmt.Sprintf("%s\t%s: %s (%s), %s gets %s points",
		r.IssueKey, verb, points, r.Status, clone, review.FormatPoints(r.Remainder))
}
