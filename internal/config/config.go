// Package config loads the JSON configuration document: the listen socket, the housekeeping schedule, and the static site
// catalogue. Server-process knobs that the document doesn't cover (socket
// timeouts, shutdown grace period) are loaded from the environment, the way
// the teacher's config package loads everything.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"powchallenge/internal/site"
	"powchallenge/internal/store"
)

// Document is the fully parsed configuration document, ready to build a
// site.Catalogue and a store.HousekeeperConfig.
type Document struct {
	ListenSocket string
	Storage      StorageConfig
}

// StorageConfig holds the housekeeping schedule and the static sites. "type"
// is currently always "Memory"; the field is kept so a future back-end can
// be selected without breaking the document shape.
type StorageConfig struct {
	Type         string
	Housekeeping store.HousekeeperConfig
	Sites        []site.Site
}

// wireDocument mirrors the JSON document's literal shape before its pieces
// are assembled into a Document.
type wireDocument struct {
	ListenSocket string `json:"listenSocket"`
	Storage      struct {
		Type         string `json:"type"`
		Housekeeping struct {
			Interval  string `json:"interval"`
			BatchSize int    `json:"batchSize"`
		} `json:"housekeeping"`
		Sites []wireSite `json:"sites"`
	} `json:"storage"`
}

type wireSite struct {
	ID              uuid.UUID `json:"id"`
	APIKey          string    `json:"apiKey"`
	Prefixes        int       `json:"prefixes"`
	PrefixLength    int       `json:"prefixLength"`
	PrefixesToSolve int       `json:"prefixesToSolve"`
	Difficulty      int       `json:"difficulty"`
	SolutionLength  int       `json:"solutionLength"`
	Lifetime        lifetime  `json:"lifetime"`
}

// lifetime decodes the exactly-one-of {"seconds": n} | {"minutes": n} object
// of spec §6 into a time.Duration.
type lifetime time.Duration

func (l *lifetime) UnmarshalJSON(data []byte) error {
	var raw struct {
		Seconds *uint64 `json:"seconds"`
		Minutes *uint64 `json:"minutes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Seconds != nil && raw.Minutes != nil:
		return fmt.Errorf("config: lifetime must have exactly one of seconds or minutes, got both")
	case raw.Seconds != nil:
		*l = lifetime(time.Duration(*raw.Seconds) * time.Second)
	case raw.Minutes != nil:
		*l = lifetime(time.Duration(*raw.Minutes) * time.Minute)
	default:
		return fmt.Errorf("config: lifetime must have exactly one of seconds or minutes, got neither")
	}
	return nil
}

// Load reads and parses the configuration document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration document already held in memory.
func Parse(data []byte) (Document, error) {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return Document{}, fmt.Errorf("config: failed to parse document: %w", err)
	}

	interval, err := time.ParseDuration(w.Storage.Housekeeping.Interval)
	if err != nil {
		return Document{}, fmt.Errorf("config: invalid housekeeping interval %q: %w", w.Storage.Housekeeping.Interval, err)
	}

	sites := make([]site.Site, len(w.Storage.Sites))
	for i, ws := range w.Storage.Sites {
		sites[i] = site.Site{
			ID:              ws.ID,
			APIKey:          ws.APIKey,
			PrefixCount:     ws.Prefixes,
			PrefixLength:    ws.PrefixLength,
			PrefixesToSolve: ws.PrefixesToSolve,
			Difficulty:      ws.Difficulty,
			SolutionLength:  ws.SolutionLength,
			Lifetime:        time.Duration(ws.Lifetime),
		}
	}

	return Document{
		ListenSocket: w.ListenSocket,
		Storage: StorageConfig{
			Type: w.Storage.Type,
			Housekeeping: store.HousekeeperConfig{
				Interval:  interval,
				BatchSize: w.Storage.Housekeeping.BatchSize,
			},
			Sites: sites,
		},
	}, nil
}

// ServerConfig holds process-level HTTP server knobs that the spec's JSON
// document doesn't cover. These come from the environment, the same way the
// teacher loads its server settings.
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoadServerConfig loads ServerConfig from the environment, falling back to
// defaults for anything unset.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate checks ServerConfig's invariants.
func (c ServerConfig) Validate() error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("READ_TIMEOUT must be positive, got: %v", c.ReadTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive, got: %v", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got: %v", c.ShutdownTimeout)
	}
	return nil
}

// ClientConfig holds the solver CLI's connection settings, loaded from the
// environment the same way ServerConfig is.
type ClientConfig struct {
	BaseURL        string
	SiteID         string
	APIKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SolveTimeout   time.Duration
}

// LoadClientConfig loads ClientConfig from the environment.
func LoadClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        getEnv("SERVER_URL", "http://localhost:8080"),
		SiteID:         getEnv("SITE_ID", ""),
		APIKey:         getEnv("API_KEY", ""),
		ConnectTimeout: getEnvDuration("CONNECT_TIMEOUT", 10*time.Second),
		ReadTimeout:    getEnvDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		SolveTimeout:   getEnvDuration("SOLVE_TIMEOUT", 5*time.Minute),
	}
}

// Validate checks ClientConfig's invariants.
func (c ClientConfig) Validate() error {
	if c.SiteID == "" {
		return fmt.Errorf("SITE_ID must be set")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY must be set")
	}
	if c.SolveTimeout <= 0 {
		return fmt.Errorf("SOLVE_TIMEOUT must be positive, got: %v", c.SolveTimeout)
	}
	return nil
}

// getEnvDuration gets environment variable as duration or returns default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		fmt.Printf("Warning: invalid duration for %s, using default: %s\n", key, defaultValue)
	}
	return defaultValue
}

// getEnv gets environment variable or returns default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ConfigPath returns the path to the JSON configuration document, read from
// CONFIG_PATH or defaulting to "config.json".
func ConfigPath() string {
	return getEnv("CONFIG_PATH", "config.json")
}
