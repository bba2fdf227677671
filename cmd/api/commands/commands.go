package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/cyclepact/core/internal/adapters/events"
	"github.com/cyclepact/core/internal/adapters/repository"
	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/infrastructure/config"
	"github.com/cyclepact/core/internal/infrastructure/database"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/infrastructure/metrics"
	"github.com/cyclepact/core/internal/infrastructure/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CyclePact API server",
		Long:  "Start the CyclePact API server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down", 0)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewSweepCommand creates the expiration sweep command
func NewSweepCommand() *cobra.Command {
	var daemon bool
	var schedule string

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale extraordinary submissions",
		Long:  "Run the expiration sweep once, or keep running it on a cron schedule with --daemon",
		Run: func(cmd *cobra.Command, args []string) {
			runSweep(daemon, schedule)
		},
	}

	sweepCmd.Flags().BoolVar(&daemon, "daemon", false, "Keep running sweeps on a schedule")
	sweepCmd.Flags().StringVar(&schedule, "schedule", "@hourly", "Cron schedule for daemon mode")

	return sweepCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CyclePact version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("CyclePact Core v1.0.0")
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	srv, err := server.New(cfg, db, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	go func() {
		appLogger.Infow("Starting CyclePact API server",
			"port", cfg.Server.Port,
			"environment", cfg.App.Environment,
		)
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
			appLogger.Errorw("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err)
	}
}

func runSweep(daemon bool, schedule string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	instanceRepo := repository.NewTaskInstanceRepository(db.DB)
	submissionRepo := repository.NewSubmissionRepository(db.DB)
	publisher := events.NewLogPublisher(appLogger)
	agendaService := services.NewAgendaService(instanceRepo, submissionRepo, publisher, metrics.New(), appLogger, cfg.Engine)

	sweep := func() {
		expired, err := agendaService.ExpireStale(context.Background(), time.Now())
		if err != nil {
			appLogger.Errorw("Sweep failed", "error", err)
			return
		}
		fmt.Printf("Sweep expired %d submissions\n", expired)
	}

	if !daemon {
		sweep()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, sweep); err != nil {
		appLogger.Fatalw("Invalid sweep schedule", "schedule", schedule, "error", err)
	}
	c.Start()
	appLogger.Infow("Sweep daemon started", "schedule", schedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-c.Stop().Done()
}

func runMigration(direction string, steps int) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration failed: %v", err)
	}

	if err == migrate.ErrNoChange {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}
