package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/kestrelworks/sentinel/internal/adapters/actions"
	"github.com/kestrelworks/sentinel/internal/adapters/audit"
	"github.com/kestrelworks/sentinel/internal/adapters/http/api"
	"github.com/kestrelworks/sentinel/internal/adapters/ingest"
	"github.com/kestrelworks/sentinel/internal/adapters/mq/queue"
	"github.com/kestrelworks/sentinel/internal/adapters/routing"
	"github.com/kestrelworks/sentinel/internal/adapters/telemetry"
	service "github.com/kestrelworks/sentinel/internal/app"
	"github.com/kestrelworks/sentinel/internal/config"
	"github.com/kestrelworks/sentinel/internal/domain/contextstore"
	"github.com/kestrelworks/sentinel/internal/domain/normalize"
	"github.com/kestrelworks/sentinel/internal/domain/reasoning"
	"github.com/kestrelworks/sentinel/internal/engine"
	"github.com/kestrelworks/sentinel/internal/engine/safety"
	"github.com/kestrelworks/sentinel/pkg/logger"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	trail, err := buildAuditLog(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open audit trail", logger.Error(err))
		return
	}

	opts := []service.Option{
		service.WithAuditLog(trail),
		service.WithQueue(queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))),
		service.WithNormalizer(normalize.New(
			normalize.WithWatermarkGrace(cfg.WatermarkGrace),
			normalize.WithDedupWindow(cfg.DedupeWindow),
			normalize.WithDedupSize(cfg.DedupeSize),
		)),
		service.WithContextStore(contextstore.New(
			contextstore.WithRetention(cfg.ContextRetention),
		)),
		service.WithStrategy(buildStrategy(cfg)),
		service.WithGate(safety.New(
			safety.WithMinConfidence(cfg.MinConfidence),
			safety.WithRateLimit(cfg.MaxActionsPerWindow, cfg.RateWindow),
		)),
		service.WithExecutor(buildExecutor(cfg)),
		service.WithPlanner(buildPlanner(cfg)),
	}

	engineOpts := []engine.Option{
		engine.WithCooldown(cfg.Cooldown),
		engine.WithContextWindow(cfg.ContextWindow),
	}

	// Telemetry stream for FSM transitions, optional.
	var broadcaster *telemetry.Broadcaster
	if cfg.TelemetryAddr != "" {
		broadcaster, err = telemetry.Listen(cfg.TelemetryAddr)
		if err != nil {
			log.Error(ctx, "failed to start telemetry listener", logger.Error(err))
			return
		}
		defer func() { _ = broadcaster.Close() }()
		engineOpts = append(engineOpts, engine.WithTelemetry(broadcaster.Emit))
		log.Info(ctx, "telemetry stream listening", logger.String("addr", cfg.TelemetryAddr))
	}
	opts = append(opts, service.WithEngineOptions(engineOpts...))

	if sources := buildSources(cfg); len(sources) > 0 {
		opts = append(opts, service.WithSources(sources...))
	}

	svc := service.New(opts...)

	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildAuditLog selects the audit backend from configuration.
func buildAuditLog(ctx context.Context, cfg *config.Config) (audit.Log, error) {
	switch cfg.AuditBackend {
	case "postgres":
		return audit.OpenPostgresLog(ctx, cfg.DatabaseURL)
	case "memory":
		return audit.NewMemoryLog(), nil
	default:
		return audit.NewFileLog(cfg.AuditPath)
	}
}

// buildStrategy selects the reasoning strategy. Without LLM credentials
// the deterministic rules run alone; with them the LLM runs with the
// rules as fallback.
func buildStrategy(cfg *config.Config) reasoning.Strategy {
	rules := reasoning.NewRuleBased()
	if cfg.LLMAPIKey == "" || cfg.LLMEndpoint == "" {
		return rules
	}
	llm := reasoning.NewLLM(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel)
	return reasoning.WithFallback(llm, rules)
}

// buildExecutor selects the action executor from configuration.
func buildExecutor(cfg *config.Config) actions.Executor {
	if cfg.ActionWebhook == "" {
		return actions.NewLogOnly()
	}
	return actions.NewDispatcher(cfg.ActionWebhook)
}

// buildPlanner selects the route planner. An OSRM backend gets the
// static interpolator as fallback so activation never depends on it.
func buildPlanner(cfg *config.Config) routing.Planner {
	static := routing.NewStaticPlanner(0)
	if cfg.RoutingURL == "" {
		return static
	}
	return routing.WithStaticFallback(routing.NewOSRMClient(cfg.RoutingURL), static)
}

// buildSources assembles the configured ingest sources.
func buildSources(cfg *config.Config) []ingest.Source {
	var sources []ingest.Source
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		sources = append(sources, ingest.NewKafkaSource(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup))
	}
	if cfg.SimulatedFeeds {
		locate := routing.NewGazetteer().Locate
		sources = append(sources,
			ingest.NewSimulatedFeed(ingest.FeedNews, locate),
			ingest.NewSimulatedFeed(ingest.FeedWeather, locate),
			ingest.NewSimulatedFeed(ingest.FeedShipment, locate),
		)
	}
	return sources
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := svc.Stats(ctx)
			metrics.UpdateQueueSize(stats.QueueLen)
			metrics.UpdateContextStoreSize(stats.ContextSz)
			metrics.UpdateRoutesRegistered(stats.Routes)
		}
	}
}

// updateSystemMetrics updates process-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
