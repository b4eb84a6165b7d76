package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loomwork/loom/internal/config"
	"github.com/loomwork/loom/internal/events"
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/node/builtin"
	"github.com/loomwork/loom/internal/schedule"
	"github.com/loomwork/loom/internal/tracing"
	"github.com/loomwork/loom/internal/webhook"
	"github.com/loomwork/loom/internal/workflow"
)

// main is the standalone worker's composition root: a process carrying
// only the automation firing path (cron ticks and the webhook
// dispatcher) with no /api/v1 route tree: its HTTP listener serves only
// the webhook route, /health and /metrics. It is for deployments that
// split the API surface from the trigger surface. It shares every
// collaborator type with cmd/api's composition root; only the route
// tree differs.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg)}))
	slog.SetDefault(logger)

	if cfg.Server.Env == "production" {
		if err := config.ValidateForProduction(cfg); err != nil {
			slog.Error("production configuration validation failed", "error", err)
			os.Exit(1)
		}
	}

	tracingCleanup, err := tracing.InitGlobalTracer(context.Background(), &cfg.Observability)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer tracingCleanup()

	db, err := sqlx.Connect("postgres", cfg.Database.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := node.NewRegistry()
	builtin.RegisterAll(registry)

	workflows := workflow.NewPostgresRepository(db)
	executions := execstore.NewPostgresRepository(db)
	automations := executions

	services := execctx.Services{HTTPClient: http.DefaultClient}

	scheduler := schedule.NewScheduler(logger)
	runner := &schedule.Runner{
		Automations: automations,
		Executions:  executions,
		Workflows:   workflows,
		Registry:    registry,
		EventSink:   events.NopSink{},
		Services:    services,
		Logger:      logger,
	}
	scheduler.RegisterPlugin("cron", runner.FireFunc())

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if err := scheduler.LoadAndArm(startupCtx, automations, "cron"); err != nil {
		logger.Warn("failed to re-arm cron automations at startup", "error", err)
	}
	cancelStartup()

	dispatcher := &webhook.Dispatcher{
		Automations: automations,
		Executions:  executions,
		Workflows:   workflows,
		Registry:    registry,
		EventSink:   events.NopSink{},
		Services:    services,
		Logger:      logger,
	}
	webhookRouter := webhookOnlyRouter(dispatcher)

	promReg := prometheus.NewRegistry()
	m := metrics.NewMetrics()
	if err := m.Register(promReg); err != nil {
		logger.Warn("failed to register prometheus collectors", "error", err)
	}

	dbCollector := metrics.NewDBStatsCollector(m, db.DB, "primary", logger)
	dbCollector.Start(context.Background(), 15*time.Second)
	defer dbCollector.Stop()

	jobCollector := metrics.NewCollector(m, scheduler, logger)
	jobCollector.Start(context.Background(), 15*time.Second)
	defer jobCollector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/automations/webhook/", webhookRouter)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         workerAddress(cfg),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting worker HTTP surface (webhooks, health, metrics)", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.UnregisterPlugin("cron")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("worker server forced to shutdown", "error", err)
	}

	logger.Info("worker stopped")
}

func parseLogLevel(cfg *config.Config) slog.Level {
	switch cfg.Server.Env {
	case "production":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// workerAddress returns WORKER_ADDRESS when it is set and otherwise
// falls back to cfg.Server.Address, the address the API server listens
// on; a worker and an API instance on one host therefore need
// WORKER_ADDRESS set to avoid colliding.
func workerAddress(cfg *config.Config) string {
	if v := os.Getenv("WORKER_ADDRESS"); v != "" {
		return v
	}
	return cfg.Server.Address
}

// webhookOnlyRouter wraps d's gin handler so it can be mounted on the
// worker's plain http.ServeMux alongside /health and /metrics, without
// pulling in the rest of internal/httpapi's route tree.
func webhookOnlyRouter(d *webhook.Dispatcher) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	webhook.RegisterRoutes(r, d)
	return r
}
