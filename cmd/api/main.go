package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loomwork/loom/internal/config"
	"github.com/loomwork/loom/internal/execctx"
	"github.com/loomwork/loom/internal/execstore"
	"github.com/loomwork/loom/internal/httpapi"
	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/node"
	"github.com/loomwork/loom/internal/node/builtin"
	"github.com/loomwork/loom/internal/schedule"
	"github.com/loomwork/loom/internal/template"
	"github.com/loomwork/loom/internal/tracing"
	"github.com/loomwork/loom/internal/webhook"
	"github.com/loomwork/loom/internal/websocket"
	"github.com/loomwork/loom/internal/workflow"
)

// main is the API server's composition root: it wires the node registry,
// the execution/workflow/automation repositories, the cron scheduler, the
// webhook dispatcher, and the live event sink behind the gin route tree
// in internal/httpapi, following the teacher's cmd/api/main.go shape
// (load config -> build logger -> validate for production -> build the
// app -> serve with graceful shutdown).
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
	if cfg.Observability.TracingEnabled {
		logger.Info("distributed tracing enabled",
			"endpoint", cfg.Observability.TracingEndpoint,
			"service_name", cfg.Observability.TracingServiceName,
			"sample_rate", cfg.Observability.TracingSampleRate,
		)
	}

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

	hub := websocket.NewHub(logger)
	go hub.Run()
	eventSink := websocket.NewEventSink(hub)
	services := execctx.Services{HTTPClient: http.DefaultClient}

	scheduler := schedule.NewScheduler(logger)
	runner := &schedule.Runner{
		Automations: automations,
		Executions:  executions,
		Workflows:   workflows,
		Registry:    registry,
		EventSink:   eventSink,
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
		EventSink:   eventSink,
		Services:    services,
		Logger:      logger,
	}

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

	templates := template.NewService(template.NewRepository(db), logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Registry:    registry,
		Workflows:   workflows,
		Executions:  executions,
		Automations: automations,
		Scheduler:   scheduler,
		Dispatcher:  dispatcher,
		Hub:         hub,
		EventSink:   eventSink,
		Services:    services,
		Metrics:     m,
		PromReg:     promReg,
		Templates:   templates,
		Logger:      logger,
	})

	var handler http.Handler = router
	handler = metrics.HTTPMetricsMiddleware(m)(handler)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting API server", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func parseLogLevel(cfg *config.Config) slog.Level {
	switch cfg.Server.Env {
	case "production":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
