package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/sprintsplit/internal/config"
)

// initCmd writes a starter config file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Write a config file with the current settings.

The file holds the defaults merged with any SPRINTSPLIT_* and JIRA_* environment
variables, except the JIRA token, which must stay in the environment.

Example:
  sprintsplit init
  sprintsplit init --output /etc/sprintsplit.yaml --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		if err := config.WriteFile(output, cfg, force); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s\n\n", output)
		fmt.Fprintln(out, "Next steps:")
		fmt.Fprintln(out, "  1. Check the board id, transition id and custom field names")
		fmt.Fprintln(out, "  2. Export JIRA_URL, JIRA_USERNAME and JIRA_TOKEN")
		fmt.Fprintf(out, "  3. Run 'sprintsplit serve --with-worker --config %s'\n", output)
		return nil
	},
}

func init() {
	initCmd.Flags().StringP("output", "o", "sprintsplit.yaml", "Path of the config file to write")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
}
