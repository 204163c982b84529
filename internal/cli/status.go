package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show daemon and task summary",
		Annotations: remote(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			summary := map[string]interface{}{}
			healthErr := apiClient.Ping(ctx)
			summary["daemon"] = "ok"
			if healthErr != nil {
				summary["daemon"] = healthErr.Error()
			}

			tasks, tasksErr := apiClient.Tasks().List(ctx)
			enabled := 0
			var nextID, nextAt string
			var next time.Time
			for _, t := range tasks {
				if !t.Enabled {
					continue
				}
				enabled++
				if nextID == "" || t.NextRun.Before(next) {
					nextID, next = t.ID, t.NextRun
					nextAt = formatTime(&next)
				}
			}
			summary["tasks"] = len(tasks)
			summary["enabled_tasks"] = enabled
			if nextID != "" {
				summary["next_task"] = nextID
				summary["next_run"] = nextAt
			}

			failed := 0
			runs, runsErr := apiClient.Runs().List(ctx, nil)
			if runsErr == nil {
				for _, r := range runs.Data {
					if r.Status != "completed" {
						failed++
					}
				}
				summary["recent_unsuccessful_runs"] = failed
			}

			if getOutputFormat() != "table" {
				return render(summary, func() {})
			}

			fmt.Fprintln(stdout, "panelbot status")
			fmt.Fprintln(stdout, strings.Repeat("=", 40))
			fmt.Fprintf(stdout, "  Daemon:        %v\n", summary["daemon"])
			if tasksErr != nil {
				fmt.Fprintf(stdout, "  Tasks:         (error: %v)\n", tasksErr)
			} else {
				fmt.Fprintf(stdout, "  Tasks:         %d enabled (%d total)\n", enabled, len(tasks))
				if nextID != "" {
					fmt.Fprintf(stdout, "  Next run:      %s at %s\n", nextID, nextAt)
				}
			}
			if runsErr != nil {
				fmt.Fprintf(stdout, "  Recent runs:   (error: %v)\n", runsErr)
			} else {
				fmt.Fprintf(stdout, "  Recent runs:   %d listed, %d not completed\n", len(runs.Data), failed)
			}
			return nil
		},
	}
}
