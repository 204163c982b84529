package cli

import (
	"fmt"
	"time"

	"github.com/pratik-mahalle/panelbot/pkg/client"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "runs",
		Short:       "Inspect bulk run history on the daemon",
		Annotations: remote(),
	}
	cmd.AddCommand(newRunsListCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		opts  client.RunListOptions
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if since > 0 {
				from := time.Now().Add(-since)
				opts.Since = &from
			}
			page, err := apiClient.Runs().List(cmd.Context(), &opts)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if getOutputFormat() != "table" {
				return render(page, func() {})
			}
			if err := renderRuns(page.Data); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "\npage %d of %d (%d runs)\n", page.Page, page.TotalPages, page.TotalItems)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TaskID, "task", "", "only runs of this task")
	cmd.Flags().StringVarP(&opts.ServerID, "server", "s", "", "only runs on this server")
	cmd.Flags().StringVar(&opts.Intent, "intent", "", "assignment or cleanup")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs started within this duration (e.g. 24h)")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "runs per page")
	return cmd
}
