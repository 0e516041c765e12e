package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"powchallenge/internal/client"
	"powchallenge/internal/config"
	"powchallenge/internal/httpapi"
	"powchallenge/internal/site"
	"powchallenge/internal/store"
)

// TestIntegration_ConfigToServer exercises the full wiring path a deployed
// process follows: parse the JSON configuration document, build the
// catalogue and store from it, and serve real HTTP traffic.
func TestIntegration_ConfigToServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	doc := []byte(`{
		"listenSocket": "127.0.0.1:18092",
		"storage": {
			"type": "Memory",
			"housekeeping": { "interval": "1s", "batchSize": 16 },
			"sites": [
				{
					"id": "60601796-0000-0000-0000-00000000008f",
					"apiKey": "cool",
					"difficulty": 1,
					"prefixes": 2,
					"prefixLength": 4,
					"prefixesToSolve": 1,
					"solutionLength": 4,
					"lifetime": { "seconds": 60 }
				}
			]
		}
	}`)

	cfg, err := config.Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cat, err := site.NewCatalogue(cfg.Storage.Sites)
	if err != nil {
		t.Fatalf("NewCatalogue failed: %v", err)
	}
	s := store.NewStore(cat, cfg.Storage.Housekeeping, logger)
	defer s.Close()

	srv := httpapi.NewServer(httpapi.Config{
		ListenSocket:    cfg.ListenSocket,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, s, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.ListenAndServe(ctx)
	time.Sleep(200 * time.Millisecond)
	defer func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}()

	baseURL := "http://" + cfg.ListenSocket
	sv := cfg.Storage.Sites[0]

	t.Run("HealthCheck", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("SolveAndMultipleRequests", func(t *testing.T) {
		c := client.NewClient(client.Config{
			BaseURL:        baseURL,
			SiteID:         sv.ID.String(),
			APIKey:         sv.APIKey,
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			SolveTimeout:   30 * time.Second,
		}, logger)

		for i := 0; i < 3; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			valid, err := c.Solve(ctx)
			cancel()

			if err != nil {
				t.Fatalf("request %d failed: %v", i+1, err)
			}
			if !valid {
				t.Errorf("request %d: server rejected a valid solution", i+1)
			}
		}
	})
}
