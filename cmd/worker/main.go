// Package main runs the FleetHealth analysis worker. The worker polls for
// pending analysis units, runs them through the registered analyzers, and
// persists the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fleethealth/api/internal/app"
	"github.com/fleethealth/api/internal/app/analyzers"
	"github.com/fleethealth/api/internal/config"
	"github.com/fleethealth/api/internal/infra/jobs"
	"github.com/fleethealth/api/internal/infra/llm"
	"github.com/fleethealth/api/internal/infra/postgres"
	"github.com/fleethealth/api/internal/infra/redis"
	"github.com/fleethealth/api/pkg/domain/analysis"
	"github.com/fleethealth/api/pkg/logger"
	"github.com/fleethealth/api/pkg/migrations"
)

func main() {
	root := &cobra.Command{
		Use:           "fleethealth-worker",
		Short:         "FleetHealth analysis worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd(), reclaimCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the analysis worker until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func reclaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Run a single stuck-unit reclaim pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReclaimOnce()
		},
	}
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(args[0], dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory containing migration files")
	return cmd
}

func runMigrate(direction, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	runner := migrations.NewRunner(db.DB, dir)
	ctx := context.Background()

	switch direction {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "status":
		return runner.Status(ctx)
	default:
		return fmt.Errorf("unknown migrate direction: %s", direction)
	}
}

func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := initLogger(cfg)
	log.Info("starting worker", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================
	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	historyCache, err := redis.NewCache[analysis.HistoryContext](redisClient, "history", 15*time.Minute)
	if err != nil {
		return fmt.Errorf("create history cache: %w", err)
	}

	jobsClient, err := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		return fmt.Errorf("create jobs client: %w", err)
	}
	defer jobsClient.Close()

	provider, err := llm.NewProvider(cfg.Analysis)
	if err != nil {
		return fmt.Errorf("create llm provider: %w", err)
	}
	log.Info("llm provider initialized", "provider", provider.Name(), "model", provider.Model())

	// ==========================================================================
	// Repositories
	// ==========================================================================
	unitRepo := postgres.NewAnalysisUnitRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	policyRepo := postgres.NewPolicyRepository(db)
	telemetryRepo := postgres.NewTelemetryRepository(db)

	// ==========================================================================
	// Services & Analyzers
	// ==========================================================================
	sanitizer := app.NewPromptSanitizer()
	parser := app.NewResponseParser()

	registry := app.NewAnalyzerRegistry()
	for _, a := range []app.Analyzer{
		analyzers.NewBatteryAnalyzer(parser, sanitizer),
		analyzers.NewDiskAnalyzer(parser, sanitizer),
		analyzers.NewOSUpdateAnalyzer(parser, sanitizer),
		analyzers.NewNetworkAnalyzer(parser, sanitizer, telemetryRepo),
	} {
		if err := registry.Register(a); err != nil {
			return fmt.Errorf("register analyzer: %w", err)
		}
	}
	log.Info("analyzers registered", "types", registry.Types())

	billing := app.NewBillingService(tenantRepo, log)
	history := app.NewHistoryService(unitRepo, historyCache, log)
	merger := app.NewPolicyMerger(policyRepo, sanitizer, log)
	service := app.NewAnalysisService(
		unitRepo, tenantRepo, deviceRepo,
		registry, billing, history, merger,
		provider, jobsClient, log,
	)

	// ==========================================================================
	// Background loops
	// ==========================================================================
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := app.NewScheduler(service, registry, cfg.Worker.PollInterval, cfg.Worker.BatchSize, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	reclaimer := app.NewReclaimer(unitRepo, cfg.Worker.ReclaimAfter, cfg.Worker.ReclaimLimit, log)
	if err := reclaimer.Start(ctx, cfg.Worker.ReclaimSchedule); err != nil {
		return fmt.Errorf("start reclaimer: %w", err)
	}
	defer reclaimer.Stop()

	metricsSrv := startMetricsServer(cfg, log)
	defer shutdownMetricsServer(metricsSrv, log)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

func runReclaimOnce() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := initLogger(cfg)

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	unitRepo := postgres.NewAnalysisUnitRepository(db)
	reclaimer := app.NewReclaimer(unitRepo, cfg.Worker.ReclaimAfter, cfg.Worker.ReclaimLimit, log)
	reclaimer.Run(context.Background())
	return nil
}

func initLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
}

func startMetricsServer(cfg *config.Config, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return srv
}

func shutdownMetricsServer(srv *http.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}
}
