package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configKeys are the preferences the CLI reads
var configKeys = map[string]string{
	"daemon_url": "daemon base URL",
	"api_key":    "daemon API key (X-API-Key)",
	"output":     "default output format: table, json, yaml",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI preferences",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigListCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive first-time setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := promptInput("Daemon URL [http://localhost:8080]: ")
			if url == "" {
				url = "http://localhost:8080"
			}
			key := promptSecret("Daemon API key (empty for none): ")
			format := promptInput("Default output format (table/json/yaml) [table]: ")
			if format == "" {
				format = "table"
			}
			if !validFormat(format) {
				return fmt.Errorf("unknown output format %q", format)
			}

			viper.Set("daemon_url", url)
			viper.Set("api_key", key)
			viper.Set("output", format)

			path, err := writeConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Configuration saved to %s\n", path)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := configKeys[args[0]]; !ok {
				return fmt.Errorf("unknown key %q", args[0])
			}
			if args[0] == "output" && !validFormat(args[1]) {
				return fmt.Errorf("unknown output format %q", args[1])
			}
			viper.Set(args[0], args[1])
			if _, err := writeConfig(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Set %s = %s\n", args[0], mask(args[0], args[1]))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val := viper.GetString(args[0])
			if val == "" {
				fmt.Fprintf(stdout, "%s: (not set)\n", args[0])
			} else {
				fmt.Fprintf(stdout, "%s: %s\n", args[0], mask(args[0], val))
			}
			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all configuration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, 0, len(configKeys))
			for k := range configKeys {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			table := NewTable("KEY", "VALUE", "DESCRIPTION")
			for _, k := range keys {
				val := viper.GetString(k)
				if val == "" {
					val = "(not set)"
				}
				table.AddRow(k, mask(k, val), configKeys[k])
			}
			table.Render()
			return nil
		},
	}
}

func mask(key, val string) string {
	if key != "api_key" || val == "" || val == "(not set)" {
		return val
	}
	if len(val) <= 4 {
		return "****"
	}
	return "****" + val[len(val)-4:]
}

func validFormat(f string) bool {
	return f == "table" || f == "json" || f == "yaml"
}

func writeConfig() (string, error) {
	path := cfgFile
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
