package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wavecrest/music-shop-ledger/internal/adapter"
	"github.com/wavecrest/music-shop-ledger/internal/api/server"
	"github.com/wavecrest/music-shop-ledger/internal/chain"
	"github.com/wavecrest/music-shop-ledger/internal/config"
	"github.com/wavecrest/music-shop-ledger/internal/emitter"
	"github.com/wavecrest/music-shop-ledger/internal/logger"
	"github.com/wavecrest/music-shop-ledger/internal/providers/jetstream"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadShopConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "shopd",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Music Shop Ledger")

	// Resolve chain parameters
	owner, err := cfg.Chain.Owner()
	if err != nil {
		logger.FatalCtx(ctx, "Invalid owner address", zap.Error(err))
	}
	ledgerAddr, err := cfg.Chain.Ledger()
	if err != nil {
		logger.FatalCtx(ctx, "Invalid ledger address", zap.Error(err))
	}
	genesis, err := cfg.Chain.Genesis()
	if err != nil {
		logger.FatalCtx(ctx, "Invalid genesis balance", zap.Error(err))
	}

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Initialize NATS publisher
	natsPublisher, err := jetstream.NewPublisher(
		ctx,
		jetstream.Config{
			URL:            cfg.NATS.URL,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			ConnectTimeout: cfg.NATS.ConnectTimeout,
		}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer natsPublisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	// Initialize the host chain with a fresh ledger
	shopChain := chain.New(chain.Config{
		Owner:          owner,
		LedgerAddress:  ledgerAddr,
		GenesisBalance: genesis,
	}, clockAdapter)
	logger.InfoCtx(ctx, "Ledger initialized", zap.String("owner", owner.Hex()))

	// Create the event emitter bridging the chain feed to NATS
	eventEmitter := emitter.NewEmitter(shopChain, natsPublisher, emitter.Config{
		SubscribeBuffer: cfg.Emitter.SubscribeBuffer,
	})
	defer eventEmitter.Close()

	// Channel for component errors
	errCh := make(chan error, 1)

	// Start the emitter
	go func() {
		if err := eventEmitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Start the API server
	apiServer := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}, shopChain)

	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case <-natsPublisher.CloseChan():
		logger.InfoCtx(ctx, "NATS connection closed unexpectedly")
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "shopd"))
		cancel()
	}

	// Graceful HTTP shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "api server"))
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Music Shop Ledger stopped")
}
