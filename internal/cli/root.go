package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/repository/postgres"
	"github.com/pratik-mahalle/panelbot/internal/services"
	"github.com/pratik-mahalle/panelbot/migrations"
	"github.com/pratik-mahalle/panelbot/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// kindAnnotation marks whether a command drives the engine in-process
// or talks to the daemon.
const kindAnnotation = "panelbot/kind"

const (
	kindLocal  = "local"
	kindRemote = "remote"
)

var (
	cfgFile      string
	outputFormat string
	daemonURL    string
	verbose      bool

	apiClient   *client.Client
	bulkService *services.BulkService

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin

	// isTerminal gates destructive confirmations
	isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panelbot",
		Short: "panelbot - bulk user management for Marzban and Marzneshin panels",
		Long: `panelbot assigns services to and cleans up users across Marzban and
Marzneshin panels in rate-limited, circuit-broken batches. Bulk commands run
in-process against the servers file; task and run commands talk to the
panelbot daemon that executes scheduled cleanups.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch commandKind(cmd) {
			case kindLocal:
				return initLocal()
			case kindRemote:
				return initClient()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.panelbot/config.yaml)")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml")
	cmd.PersistentFlags().StringVar(&daemonURL, "daemon", "", "daemon URL (overrides config)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")

	_ = viper.BindPFlag("daemon_url", cmd.PersistentFlags().Lookup("daemon"))

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServersCmd())
	cmd.AddCommand(newAdminsCmd())
	cmd.AddCommand(newServicesCmd())
	cmd.AddCommand(newStatusesCmd())
	cmd.AddCommand(newBulkCmd())
	cmd.AddCommand(newTasksCmd())
	cmd.AddCommand(newRunsCmd())

	return cmd
}

func Execute() error {
	return newRootCmd().Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".panelbot"), nil
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		_ = os.MkdirAll(dir, 0700)
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PANELBOT")
	viper.AutomaticEnv()

	viper.SetDefault("daemon_url", "http://localhost:8080")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

// commandKind returns the nearest kind annotation up the command tree
func commandKind(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if kind, ok := c.Annotations[kindAnnotation]; ok {
			return kind
		}
	}
	return ""
}

func local() map[string]string  { return map[string]string{kindAnnotation: kindLocal} }
func remote() map[string]string { return map[string]string{kindAnnotation: kindRemote} }

func initClient() error {
	if apiClient != nil {
		return nil
	}
	url := viper.GetString("daemon_url")
	if daemonURL != "" {
		url = daemonURL
	}
	apiClient = client.NewClient(client.Config{
		BaseURL: url,
		APIKey:  viper.GetString("api_key"),
	})
	return nil
}

// initLocal builds the engine from the daemon's environment configuration.
// Runs are recorded in the same history store when it can be opened.
func initLocal() error {
	if bulkService != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"}
	if verbose {
		logCfg.Level = "debug"
	}
	log := logger.New(logCfg)

	engine, err := services.NewEngine(cfg, nil, log)
	if err != nil {
		return err
	}

	var runs *postgres.RunRepository
	if db, err := postgres.New(cfg.Database); err != nil {
		log.WarnWithErr(err, "Run history unavailable")
	} else if err := postgres.RunMigrations(db, migrations.GetFS(), nil); err != nil {
		log.WarnWithErr(err, "Run history unavailable")
	} else {
		runs = postgres.NewRunRepository(db, cfg.Database.Driver)
	}

	if runs != nil {
		bulkService = services.NewBulkService(engine.Servers, engine.Client, engine.Cleanup, engine.Assignment, runs, nil, log)
	} else {
		bulkService = services.NewBulkService(engine.Servers, engine.Client, engine.Cleanup, engine.Assignment, nil, nil, log)
	}
	return nil
}

func getOutputFormat() string {
	if outputFormat != "" {
		return outputFormat
	}
	return viper.GetString("output")
}
