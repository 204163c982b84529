package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type serverRow struct {
	ID     string `json:"id" yaml:"id"`
	Remark string `json:"remark" yaml:"remark"`
	Type   string `json:"type" yaml:"type"`
	Host   string `json:"host" yaml:"host"`
}

func newServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "servers",
		Short:       "Inspect configured panel servers",
		Annotations: local(),
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List servers from the servers file",
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := bulkService.ListServers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list servers: %w", err)
			}
			rows := make([]serverRow, 0, len(servers))
			for _, s := range servers {
				rows = append(rows, serverRow{ID: s.ID, Remark: s.Remark, Type: string(s.Type), Host: s.Host})
			}
			return render(rows, func() {
				table := NewTable("ID", "REMARK", "TYPE", "HOST")
				for _, r := range rows {
					table.AddRow(r.ID, r.Remark, r.Type, r.Host)
				}
				table.Render()
			})
		},
	})
	return cmd
}

func newAdminsCmd() *cobra.Command {
	var serverID string

	cmd := &cobra.Command{
		Use:         "admins",
		Short:       "Inspect panel admins",
		Annotations: local(),
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List a server's admins (ALL selects every user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			admins, err := bulkService.ListAdmins(cmd.Context(), serverID)
			if err != nil {
				return fmt.Errorf("failed to list admins: %w", err)
			}
			return render(admins, func() {
				table := NewTable("ADMIN")
				for _, a := range admins {
					table.AddRow(a)
				}
				table.Render()
			})
		},
	}
	list.Flags().StringVarP(&serverID, "server", "s", "", "server id")
	_ = list.MarkFlagRequired("server")
	cmd.AddCommand(list)
	return cmd
}

func newServicesCmd() *cobra.Command {
	var serverID string

	cmd := &cobra.Command{
		Use:         "services",
		Short:       "Inspect panel services or inbounds",
		Annotations: local(),
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List a server's services (inbounds on Marzban)",
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := bulkService.ListServices(cmd.Context(), serverID)
			if err != nil {
				return fmt.Errorf("failed to list services: %w", err)
			}
			return render(configs, func() {
				table := NewTable("ID", "NAME")
				for _, c := range configs {
					table.AddRow(strconv.Itoa(c.ID), c.Name)
				}
				table.Render()
			})
		},
	}
	list.Flags().StringVarP(&serverID, "server", "s", "", "server id")
	_ = list.MarkFlagRequired("server")
	cmd.AddCommand(list)
	return cmd
}

func newStatusesCmd() *cobra.Command {
	var serverID string

	cmd := &cobra.Command{
		Use:         "statuses",
		Short:       "List the cleanup status filters a server supports",
		Annotations: local(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bulkService.StatusOptions(cmd.Context(), serverID)
			if err != nil {
				return fmt.Errorf("failed to list statuses: %w", err)
			}
			return render(opts, func() {
				table := NewTable("VALUE", "DESCRIPTION")
				for _, o := range opts {
					table.AddRow(o.Value, o.Label)
				}
				table.Render()
			})
		},
	}
	cmd.Flags().StringVarP(&serverID, "server", "s", "", "server id")
	_ = cmd.MarkFlagRequired("server")
	return cmd
}
