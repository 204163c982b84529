package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Panel       PanelConfig
	Bulk        BulkConfig
	Scheduler   SchedulerConfig
	NodeMonitor NodeMonitorConfig
}

// ServerConfig contains the daemon HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	APIKey          string
	RequestsPerMin  int
	Environment     string
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains run history database configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// For SQLite
	Path string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string
	Format     string // json or console
	OutputPath string
}

// PanelConfig controls the HTTP client used against panel servers
type PanelConfig struct {
	ServersFile    string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestsPerSec float64
	Burst          int
}

// BulkProfile is one set of orchestrator tuning knobs
type BulkProfile struct {
	BatchSize        int
	ConcurrencyLimit int
	InitialDelay     time.Duration
}

// BulkConfig contains bulk engine tuning
type BulkConfig struct {
	Cleanup          BulkProfile
	Assignment       BulkProfile
	Scheduled        BulkProfile
	FailureThreshold int
	RecoveryTimeout  time.Duration
	MinDelay         time.Duration
	MaxDelay         time.Duration
}

// SchedulerConfig contains cleanup scheduler configuration
type SchedulerConfig struct {
	Enabled  bool
	Tick     time.Duration
	TaskFile string
}

// NodeMonitorConfig contains node health polling configuration
type NodeMonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromEnv builds a configuration from the current environment without
// reading .env or validating.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			APIKey:          getEnv("API_KEY", ""),
			RequestsPerMin:  getEnvAsInt("API_REQUESTS_PER_MIN", 120),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "panelbot"),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Path:            getEnv("DB_PATH", "./panelbot.db"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Panel: PanelConfig{
			ServersFile:    getEnv("PANEL_SERVERS_FILE", "./servers.yaml"),
			Timeout:        getEnvAsDuration("PANEL_TIMEOUT", 10*time.Second),
			MaxRetries:     getEnvAsInt("PANEL_MAX_RETRIES", 3),
			RetryBackoff:   getEnvAsDuration("PANEL_RETRY_BACKOFF", time.Second),
			RequestsPerSec: getEnvAsFloat("PANEL_REQUESTS_PER_SEC", 20),
			Burst:          getEnvAsInt("PANEL_BURST", 5),
		},
		Bulk: BulkConfig{
			Cleanup: BulkProfile{
				BatchSize:        getEnvAsInt("BULK_CLEANUP_BATCH_SIZE", 8),
				ConcurrencyLimit: getEnvAsInt("BULK_CLEANUP_CONCURRENCY", 2),
				InitialDelay:     getEnvAsDuration("BULK_CLEANUP_DELAY", 200*time.Millisecond),
			},
			Assignment: BulkProfile{
				BatchSize:        getEnvAsInt("BULK_ASSIGN_BATCH_SIZE", 20),
				ConcurrencyLimit: getEnvAsInt("BULK_ASSIGN_CONCURRENCY", 5),
				InitialDelay:     getEnvAsDuration("BULK_ASSIGN_DELAY", 200*time.Millisecond),
			},
			Scheduled: BulkProfile{
				BatchSize:        getEnvAsInt("BULK_SCHEDULED_BATCH_SIZE", 5),
				ConcurrencyLimit: getEnvAsInt("BULK_SCHEDULED_CONCURRENCY", 1),
				InitialDelay:     getEnvAsDuration("BULK_SCHEDULED_DELAY", 500*time.Millisecond),
			},
			FailureThreshold: getEnvAsInt("BULK_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  getEnvAsDuration("BULK_RECOVERY_TIMEOUT", 30*time.Second),
			MinDelay:         getEnvAsDuration("BULK_MIN_DELAY", 50*time.Millisecond),
			MaxDelay:         getEnvAsDuration("BULK_MAX_DELAY", 5*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", true),
			Tick:     getEnvAsDuration("SCHEDULER_TICK", 60*time.Second),
			TaskFile: getEnv("SCHEDULER_TASK_FILE", "./cleanup_tasks.json"),
		},
		NodeMonitor: NodeMonitorConfig{
			Enabled:  getEnvAsBool("NODE_MONITOR_ENABLED", true),
			Interval: getEnvAsDuration("NODE_MONITOR_INTERVAL", 5*time.Minute),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Environment == "production" && c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY must be set in production")
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Panel.ServersFile == "" {
		return fmt.Errorf("PANEL_SERVERS_FILE must be set")
	}
	if c.Panel.MaxRetries < 0 {
		return fmt.Errorf("invalid panel max retries: %d", c.Panel.MaxRetries)
	}
	if c.Panel.RequestsPerSec <= 0 || c.Panel.Burst < 1 {
		return fmt.Errorf("panel rate limit must be positive")
	}

	for name, p := range map[string]BulkProfile{
		"cleanup":    c.Bulk.Cleanup,
		"assignment": c.Bulk.Assignment,
		"scheduled":  c.Bulk.Scheduled,
	} {
		if p.BatchSize < 1 || p.ConcurrencyLimit < 1 {
			return fmt.Errorf("bulk %s profile needs batch size and concurrency >= 1", name)
		}
	}
	if c.Bulk.FailureThreshold < 1 {
		return fmt.Errorf("invalid failure threshold: %d", c.Bulk.FailureThreshold)
	}
	if c.Bulk.MinDelay > c.Bulk.MaxDelay {
		return fmt.Errorf("bulk min delay %s exceeds max delay %s", c.Bulk.MinDelay, c.Bulk.MaxDelay)
	}

	if c.Scheduler.Tick < time.Second {
		return fmt.Errorf("scheduler tick must be at least 1s, got %s", c.Scheduler.Tick)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
