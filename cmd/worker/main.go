package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/api/handlers"
	"github.com/pratik-mahalle/panelbot/internal/api/middleware"
	"github.com/pratik-mahalle/panelbot/internal/api/router"
	"github.com/pratik-mahalle/panelbot/internal/config"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/repository/file"
	"github.com/pratik-mahalle/panelbot/internal/repository/postgres"
	"github.com/pratik-mahalle/panelbot/internal/services"
	"github.com/pratik-mahalle/panelbot/internal/worker"
	"github.com/pratik-mahalle/panelbot/migrations"
)

const limiterSweepInterval = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "panelbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	log.WithFields(map[string]interface{}{
		"environment": cfg.Server.Environment,
		"db_driver":   cfg.Database.Driver,
	}).Info("Starting panelbot daemon")

	db, err := postgres.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, migrations.GetFS(), log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	runs := postgres.NewRunRepository(db, cfg.Database.Driver)

	engine, err := services.NewEngine(cfg, nil, log)
	if err != nil {
		return fmt.Errorf("failed to build panel engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := services.NewSchedulerService(
		file.NewTaskStore(cfg.Scheduler.TaskFile, log),
		engine.Servers,
		engine.Scheduled,
		log,
		services.WithTick(cfg.Scheduler.Tick),
		services.WithRunRepository(runs),
	)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
	} else {
		log.Info("Cleanup scheduler disabled")
	}

	if cfg.NodeMonitor.Enabled {
		monitor := worker.NewNodeMonitor(engine.Servers, engine.Client, nil, cfg.NodeMonitor.Interval, log)
		go monitor.Start(ctx)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RequestsPerMin, cfg.Server.RequestsPerMin/6+1)
	go sweepLimiter(ctx, limiter)

	bulkService := services.NewBulkService(engine.Servers, engine.Client, engine.Cleanup, engine.Assignment, runs, nil, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.New(cfg.Server, log, limiter, buildHandlers(db, scheduler, cfg, runs, bulkService, log)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.With("signal", sig.String()).Info("Shutdown signal received")

		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			log.ErrorWithErr(err, "Graceful shutdown failed")
		}
	}

	// An in-flight cleanup tick may finish within the shutdown timeout;
	// past it the scheduler cancels the run between batches.
	stopCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := scheduler.Shutdown(stopCtx); err != nil {
		log.WarnWithErr(err, "Cleanup scheduler did not stop in time")
	}
	cancel()

	if serveErr != nil {
		return serveErr
	}
	log.Info("Daemon stopped")
	return nil
}

func buildHandlers(
	db *sql.DB,
	scheduler *services.SchedulerService,
	cfg *config.Config,
	runs *postgres.RunRepository,
	bulkService *services.BulkService,
	log *logger.Logger,
) *router.Handlers {
	var probe handlers.SchedulerProbe
	if cfg.Scheduler.Enabled {
		probe = scheduler
	}
	return &router.Handlers{
		Health: handlers.NewHealthHandler(db, probe, log),
		Task:   handlers.NewTaskHandler(scheduler, log),
		Run:    handlers.NewRunHandler(runs, log),
		Server: handlers.NewServerHandler(bulkService, log),
	}
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
