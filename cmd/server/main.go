package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/sollink/service/account"
	"github.com/brojonat/sollink/service/config"
	"github.com/brojonat/sollink/service/dashboard"
	"github.com/brojonat/sollink/service/metrics"
	natspkg "github.com/brojonat/sollink/service/nats"
	"github.com/brojonat/sollink/service/server"
	"github.com/brojonat/sollink/service/solana"
	"github.com/brojonat/sollink/service/wallet"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"network", cfg.Network,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	endpoint, err := solana.SelectRandomEndpoint(cfg.RPCEndpoints())
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(solana.NewRPCClient(endpoint), endpoint, m, logger).
		WithCommitment(cfg.Commitment).
		WithRateLimit(cfg.RPCRateLimit)
	logger.Info("initialized solana RPC client", "url", endpoint, "commitment", cfg.Commitment)

	accounts := account.NewService(solanaClient, cfg.TokenSymbols(), logger)

	// Optional signer. Without one the dashboard only connects watch-only wallets.
	var keypair wallet.Wallet
	if cfg.WalletKeypairPath != "" {
		kp, err := wallet.LoadKeypair(cfg.WalletKeypairPath)
		if err != nil {
			logger.Error("failed to load wallet keypair", "path", cfg.WalletKeypairPath, "error", err)
			os.Exit(1)
		}
		keypair = kp
		logger.Info("loaded wallet keypair", "address", kp.PublicKey().String())
	}

	// Notifications go to NATS when configured
	var notifier dashboard.Notifier = dashboard.NopNotifier{}
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		notifier = natspkg.NewNotifier(publisher, m, logger)

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to initialize SSE publisher", "error", err)
			os.Exit(1)
		}
	}

	dash := dashboard.New(dashboard.Options{
		Accounts:       accounts,
		Notifier:       notifier,
		Metrics:        m,
		Logger:         logger,
		Network:        cfg.Network,
		ExplorerHost:   cfg.ExplorerHost,
		Commitment:     cfg.Commitment,
		HistoryLimit:   cfg.HistoryLimit,
		FetchTimeout:   cfg.FetchTimeout,
		ConfirmTimeout: cfg.ConfirmTimeout,
		OnSendPhase: func(phase dashboard.SendPhase) {
			logger.Debug("send phase", "phase", phase)
		},
	})
	defer dash.Close()

	// Connect the signer on startup so the dashboard is populated immediately
	if keypair != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
		if _, err := dash.Connect(ctx, keypair); err != nil {
			logger.Warn("failed to connect keypair wallet", "error", err)
		}
		cancel()
	}

	httpServer := server.New(cfg.ServerAddr, cfg, dash, keypair, ssePublisher, m, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"solana_rpc", endpoint,
		"nats_url", cfg.NATSURL,
		"can_sign", keypair != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Cancel in-flight fetches and sends before draining connections
		dash.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
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
