package main

import (
	"fmt"
	"os"

	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/repository/postgres"
	"github.com/pratik-mahalle/panelbot/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: "info", Format: "console", OutputPath: "stdout"})

	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, migrations.GetFS(), log); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("All migrations completed successfully")
}
