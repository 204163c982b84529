package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pratik-mahalle/panelbot/pkg/client"
	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "tasks",
		Aliases:     []string{"task"},
		Short:       "Manage scheduled cleanup tasks on the daemon",
		Annotations: remote(),
	}

	cmd.AddCommand(newTasksListCmd())
	cmd.AddCommand(newTasksGetCmd())
	cmd.AddCommand(newTasksCreateCmd())
	cmd.AddCommand(newTasksToggleCmd("enable", "Resume a task"))
	cmd.AddCommand(newTasksToggleCmd("disable", "Pause a task"))
	cmd.AddCommand(newTasksDeleteCmd())
	cmd.AddCommand(newTasksRunCmd())

	return cmd
}

func renderTasks(tasks []client.Task) error {
	return render(tasks, func() {
		table := NewTable("ID", "SERVER", "ADMINS", "STATUSES", "EVERY", "STATE", "LAST RUN", "NEXT RUN", "LAST ERROR")
		for _, t := range tasks {
			state := "enabled"
			if !t.Enabled {
				state = "disabled"
			}
			table.AddRow(t.ID, t.ServerID,
				truncate(strings.Join(t.AdminUsernames, ","), 24),
				strings.Join(t.StatusFilters, ","),
				fmt.Sprintf("%dh", t.IntervalHours),
				formatStatus(state),
				formatTime(t.LastRun),
				formatTime(&t.NextRun),
				truncate(t.LastError, 40))
		}
		table.Render()
	})
}

func newTasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cleanup tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := apiClient.Tasks().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}
			return renderTasks(tasks)
		},
	}
}

func newTasksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := apiClient.Tasks().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get task: %w", err)
			}
			return renderTasks([]client.Task{*t})
		},
	}
}

func newTasksCreateCmd() *cobra.Command {
	var req client.CreateTaskRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a recurring cleanup",
		Example: `  panelbot tasks create -s 1 --admins ALL --statuses expired,limited --every 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := apiClient.Tasks().Create(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to create task: %w", err)
			}
			if getOutputFormat() == "table" {
				fmt.Fprintf(stdout, "Task '%s' created, first run at %s\n", t.ID, formatTime(&t.NextRun))
				return nil
			}
			return render(t, func() {})
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "task id (default cleanup_<server>_<unix time>)")
	cmd.Flags().StringVarP(&req.ServerID, "server", "s", "", "server id")
	cmd.Flags().StringSliceVar(&req.AdminUsernames, "admins", []string{"ALL"}, "admin usernames, or ALL")
	cmd.Flags().StringSliceVar(&req.StatusFilters, "statuses", nil, "status filters")
	cmd.Flags().IntVar(&req.IntervalHours, "every", 24, "interval in hours")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("statuses")

	return cmd
}

func newTasksToggleCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if action == "enable" {
				_, err = apiClient.Tasks().Enable(cmd.Context(), args[0])
			} else {
				_, err = apiClient.Tasks().Disable(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to %s task: %w", action, err)
			}
			fmt.Fprintf(stdout, "Task %s %sd\n", args[0], action)
			return nil
		},
	}
}

func newTasksDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(fmt.Sprintf("Delete task %s?", args[0]), yes); err != nil {
				return err
			}
			if err := apiClient.Tasks().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			fmt.Fprintf(stdout, "Task %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newTasksRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a task now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(stderr, "Running task...")
			run, err := apiClient.Tasks().Run(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to run task: %w", err)
			}
			return renderRuns([]client.Run{*run})
		},
	}
}

func renderRuns(runs []client.Run) error {
	return render(runs, func() {
		table := NewTable("ID", "STARTED", "TRIGGER", "INTENT", "SERVER", "STATUS", "USERS", "OK", "FAILED", "DELETED", "DURATION", "ERROR")
		for _, r := range runs {
			started := r.StartedAt
			table.AddRow(truncate(r.ID, 8), formatTime(&started), r.Trigger, r.Intent, r.ServerID,
				formatStatus(r.Status),
				strconv.Itoa(r.TotalUsers), strconv.Itoa(r.Successful), strconv.Itoa(r.Failed),
				strconv.Itoa(r.TotalDeleted),
				fmt.Sprintf("%.1fs", float64(r.DurationMs)/1000),
				truncate(r.Error, 40))
		}
		table.Render()
	})
}
