package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"powchallenge/internal/client"
	"powchallenge/internal/config"
)

func main() {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("starting proof-of-work challenge client...")

	cfg := config.LoadClientConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid client configuration", "error", err)
		log.Fatalf("configuration validation failed: %v", err)
	}

	logger.Info("configuration loaded", "server_url", cfg.BaseURL, "site_id", cfg.SiteID)

	c := client.NewClient(client.Config{
		BaseURL:        cfg.BaseURL,
		SiteID:         cfg.SiteID,
		APIKey:         cfg.APIKey,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		SolveTimeout:   cfg.SolveTimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SolveTimeout+cfg.ConnectTimeout+cfg.ReadTimeout)
	defer cancel()

	logger.Info("requesting challenge from server...")

	valid, err := c.Solve(ctx)
	if err != nil {
		logger.Error("failed to solve challenge", "error", err)
		log.Fatal(err)
	}

	if valid {
		logger.Info("challenge solved and accepted")
	} else {
		logger.Warn("challenge submitted but rejected by server")
		os.Exit(1)
	}
}
