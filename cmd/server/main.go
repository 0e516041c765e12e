package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"powchallenge/internal/config"
	"powchallenge/internal/httpapi"
	"powchallenge/internal/site"
	"powchallenge/internal/store"
)

func main() {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("starting proof-of-work challenge server...")

	// Load the JSON document: listen socket, housekeeping schedule, sites.
	doc, err := config.Load(config.ConfigPath())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		log.Fatalf("configuration load failed: %v", err)
	}

	// Load the process-level server knobs from the environment.
	serverCfg := config.LoadServerConfig()
	if err := serverCfg.Validate(); err != nil {
		logger.Error("invalid server configuration", "error", err)
		log.Fatalf("configuration validation failed: %v", err)
	}

	logger.Info("configuration loaded",
		"listen_socket", doc.ListenSocket,
		"site_count", len(doc.Storage.Sites),
		"housekeeping_interval", doc.Storage.Housekeeping.Interval,
		"housekeeping_batch_size", doc.Storage.Housekeeping.BatchSize)

	catalogue, err := site.NewCatalogue(doc.Storage.Sites)
	if err != nil {
		logger.Error("invalid site catalogue", "error", err)
		log.Fatalf("site catalogue validation failed: %v", err)
	}

	challengeStore := store.NewStore(catalogue, doc.Storage.Housekeeping, logger)
	defer challengeStore.Close()

	srv := httpapi.NewServer(httpapi.Config{
		ListenSocket:    doc.ListenSocket,
		ReadTimeout:     serverCfg.ReadTimeout,
		WriteTimeout:    serverCfg.WriteTimeout,
		ShutdownTimeout: serverCfg.ShutdownTimeout,
	}, challengeStore, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		// Always send to channel, even if no error (nil means clean shutdown)
		errChan <- srv.ListenAndServe(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()

		logger.Info("waiting for server to shut down gracefully...")
		if err := <-errChan; err != nil {
			logger.Error("server shutdown error", "error", err)
			log.Fatal(err)
		}

	case err := <-errChan:
		// Server exited on its own (not due to signal)
		cancel()
		if err != nil {
			logger.Error("server error", "error", err)
			log.Fatal(err)
		}
		logger.Info("server exited without error")
	}

	logger.Info("server stopped")
}
