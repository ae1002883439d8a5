package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solwithdraw/service/config"
	"github.com/brojonat/solwithdraw/service/db"
	"github.com/brojonat/solwithdraw/service/keystore"
	"github.com/brojonat/solwithdraw/service/metrics"
	natspkg "github.com/brojonat/solwithdraw/service/nats"
	"github.com/brojonat/solwithdraw/service/server"
	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/brojonat/solwithdraw/service/temporal"
	"github.com/brojonat/solwithdraw/service/withdrawal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.SolanaNetwork,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	store := db.NewStore(dbPool, metricsCollector)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply database schema", "error", err)
		os.Exit(1)
	}

	// One endpoint is picked per process; for premium RPC endpoints
	// include the API key in the URL.
	rpcURL, err := solana.SelectRandomEndpoint(cfg.RPCEndpoints())
	if err != nil {
		logger.Error("failed to select solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	endpoint := solana.EndpointLabel(rpcURL)
	solanaClient := solana.NewClient(
		solana.NewRPCClient(rpcURL, solana.RPCOptions{
			Timeout:           cfg.SolanaRPCTimeout,
			RequestsPerSecond: cfg.SolanaRPCRateLimit,
		}),
		cfg.SolanaNetwork,
		endpoint,
		metricsCollector,
		logger,
	)
	logger.Info("initialized solana RPC client",
		"endpoint", endpoint,
		"total_endpoints", len(cfg.RPCEndpoints()),
	)

	keys, err := keystore.NewFileStore(cfg.KeystoreDir, []byte(cfg.KeystorePassword), logger)
	if err != nil {
		logger.Error("failed to open keystore", "error", err)
		os.Exit(1)
	}
	defer keys.Close()

	natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create NATS publisher", "error", err)
		os.Exit(1)
	}
	defer natsPublisher.Close()

	natsSubscriber, err := natspkg.NewSubscriber(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to create NATS subscriber", "error", err)
		os.Exit(1)
	}
	defer natsSubscriber.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	service := withdrawal.NewService(solanaClient, store, keys, natsPublisher, metricsCollector, logger, withdrawal.Options{
		ConfirmTimeout: cfg.InteractiveConfirmTimeout,
		PollInterval:   cfg.ConfirmPollInterval,
	})

	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		metricsCollector,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	httpServer := server.New(
		cfg.ServerAddr,
		cfg,
		store,
		service,
		temporalClient,
		solanaClient,
		natsSubscriber,
		metricsCollector,
		logger,
	)

	redacted := cfg.Redacted()
	logger.Info("server initialized, all dependencies ready",
		"database_url", redacted.DatabaseURL,
		"nats_url", cfg.NATSURL,
		"temporal_host", cfg.TemporalHost,
		"task_queue", cfg.TemporalTaskQueue,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// In-flight interactive withdrawals get their full confirmation
		// window to finish.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.InteractiveConfirmTimeout+30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
