package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pratik-mahalle/panelbot/internal/bulk"
	"github.com/spf13/cobra"
)

func newBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "bulk",
		Short:       "Run bulk operations against a panel",
		Annotations: local(),
	}
	cmd.AddCommand(newBulkAssignCmd())
	cmd.AddCommand(newBulkCleanupCmd())
	return cmd
}

func newBulkAssignCmd() *cobra.Command {
	var (
		serverID string
		admins   []string
		services []int
		action   string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Add or remove services on every user of the selected admins",
		Example: `  panelbot bulk assign -s 1 --admins ALL --services 3,4 --action add
  panelbot bulk assign -s 1 --admins alice,bob --services 3 --action remove --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			act := bulk.Action(action)
			if !act.IsAssignment() {
				return fmt.Errorf("--action must be add or remove")
			}
			if act == bulk.ActionRemove {
				prompt := fmt.Sprintf("Remove services %v from users of %s on server %s?", services, strings.Join(admins, ", "), serverID)
				if err := confirm(prompt, yes); err != nil {
					return err
				}
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			agg, err := bulkService.Assign(ctx, serverID, admins, services, act, progressPrinter())
			return report(agg, err)
		},
	}

	cmd.Flags().StringVarP(&serverID, "server", "s", "", "server id")
	cmd.Flags().StringSliceVar(&admins, "admins", []string{bulk.AllAdmins}, "admin usernames, or ALL")
	cmd.Flags().IntSliceVar(&services, "services", nil, "service ids")
	cmd.Flags().StringVar(&action, "action", string(bulk.ActionAdd), "add or remove")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("services")
	return cmd
}

func newBulkCleanupCmd() *cobra.Command {
	var (
		serverID string
		admins   []string
		statuses []string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete users matching any of the status filters",
		Example: `  panelbot statuses -s 1
  panelbot bulk cleanup -s 1 --admins ALL --statuses expired,limited`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := fmt.Sprintf("Permanently delete %s users of %s on server %s?",
				strings.Join(statuses, "/"), strings.Join(admins, ", "), serverID)
			if err := confirm(prompt, yes); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			agg, err := bulkService.Cleanup(ctx, serverID, admins, statuses, progressPrinter())
			return report(agg, err)
		},
	}

	cmd.Flags().StringVarP(&serverID, "server", "s", "", "server id")
	cmd.Flags().StringSliceVar(&admins, "admins", []string{bulk.AllAdmins}, "admin usernames, or ALL")
	cmd.Flags().StringSliceVar(&statuses, "statuses", nil, "status filters (see 'panelbot statuses')")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("statuses")
	return cmd
}

// signalContext cancels on Ctrl-C so the engine stops between batches
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// progressPrinter streams per-admin counters to stderr
func progressPrinter() bulk.ProgressSink {
	return bulk.ProgressFunc(func(admin string, c bulk.Counters) error {
		_, err := fmt.Fprintf(stderr, "[%s] users=%d ops=%d ok=%d failed=%d skipped=%d deleted=%d\n",
			admin, c.TotalUsers, c.TotalOperations, c.Successful, c.Failed, c.Skipped, c.TotalDeleted)
		return err
	})
}

// report prints the aggregate. A run with failures, or one that was
// interrupted, still prints what it achieved before returning the error.
func report(agg *bulk.AggregateResult, runErr error) error {
	if agg == nil {
		return runErr
	}

	err := render(agg, func() {
		table := NewTable("ADMIN", "USERS", "OPERATIONS", "OK", "FAILED", "SKIPPED", "DELETED", "ERROR")
		for _, a := range agg.Admins {
			table.AddRow(a.Admin,
				strconv.Itoa(a.TotalUsers), strconv.Itoa(a.TotalOperations),
				strconv.Itoa(a.Successful), strconv.Itoa(a.Failed),
				strconv.Itoa(a.Skipped), strconv.Itoa(a.TotalDeleted),
				truncate(a.Error, 40))
		}
		table.AddRow("TOTAL",
			strconv.Itoa(agg.TotalUsers), strconv.Itoa(agg.TotalOperations),
			strconv.Itoa(agg.Successful), strconv.Itoa(agg.Failed),
			strconv.Itoa(agg.Skipped), strconv.Itoa(agg.TotalDeleted), "")
		table.Render()
		for _, e := range agg.Errors {
			fmt.Fprintf(stdout, "  error: %s\n", e)
		}
	})
	if err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if agg.Failed > 0 {
		return fmt.Errorf("%d operations failed", agg.Failed)
	}
	return nil
}
