package config

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	doc := []byte(`{
		"listenSocket": "0.0.0.0:8080",
		"storage": {
			"type": "Memory",
			"housekeeping": { "interval": "5s", "batchSize": 32 },
			"sites": [
				{
					"id": "60601796-7dc2-4d4f-afae-5728592bba6f",
					"apiKey": "cool",
					"difficulty": 17,
					"prefixes": 12,
					"prefixLength": 33,
					"prefixesToSolve": 8,
					"solutionLength": 21,
					"lifetime": { "minutes": 2 }
				}
			]
		}
	}`)

	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.ListenSocket != "0.0.0.0:8080" {
		t.Errorf("unexpected listenSocket: %q", cfg.ListenSocket)
	}
	if cfg.Storage.Housekeeping.Interval != 5*time.Second {
		t.Errorf("unexpected interval: %v", cfg.Storage.Housekeeping.Interval)
	}
	if cfg.Storage.Housekeeping.BatchSize != 32 {
		t.Errorf("unexpected batchSize: %d", cfg.Storage.Housekeeping.BatchSize)
	}
	if len(cfg.Storage.Sites) != 1 {
		t.Fatalf("expected 1 site, got %d", len(cfg.Storage.Sites))
	}

	s := cfg.Storage.Sites[0]
	if s.APIKey != "cool" {
		t.Errorf("unexpected apiKey: %q", s.APIKey)
	}
	if s.PrefixCount != 12 {
		t.Errorf("unexpected prefixCount: %d", s.PrefixCount)
	}
	if s.PrefixLength != 33 {
		t.Errorf("unexpected prefixLength: %d", s.PrefixLength)
	}
	if s.PrefixesToSolve != 8 {
		t.Errorf("unexpected prefixesToSolve: %d", s.PrefixesToSolve)
	}
	if s.Difficulty != 17 {
		t.Errorf("unexpected difficulty: %d", s.Difficulty)
	}
	if s.SolutionLength != 21 {
		t.Errorf("unexpected solutionLength: %d", s.SolutionLength)
	}
	if s.Lifetime != 2*time.Minute {
		t.Errorf("unexpected lifetime: %v", s.Lifetime)
	}
}

func TestLifetimeUnmarshal_Seconds(t *testing.T) {
	var l lifetime
	if err := l.UnmarshalJSON([]byte(`{"seconds":32}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Duration(l) != 32*time.Second {
		t.Errorf("expected 32s, got %v", time.Duration(l))
	}
}

func TestLifetimeUnmarshal_Minutes(t *testing.T) {
	var l lifetime
	if err := l.UnmarshalJSON([]byte(`{"minutes":2}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Duration(l) != 2*time.Minute {
		t.Errorf("expected 2m, got %v", time.Duration(l))
	}
}

func TestLifetimeUnmarshal_RejectsBothFields(t *testing.T) {
	var l lifetime
	if err := l.UnmarshalJSON([]byte(`{"minutes":2,"seconds":21}`)); err == nil {
		t.Error("expected an error when both seconds and minutes are present")
	}
}

func TestLifetimeUnmarshal_RejectsNeitherField(t *testing.T) {
	var l lifetime
	if err := l.UnmarshalJSON([]byte(`{}`)); err == nil {
		t.Error("expected an error when neither seconds nor minutes is present")
	}
}

func TestParse_InvalidInterval(t *testing.T) {
	doc := []byte(`{
		"listenSocket": "0.0.0.0:8080",
		"storage": {
			"type": "Memory",
			"housekeeping": { "interval": "not-a-duration", "batchSize": 1 },
			"sites": []
		}
	}`)

	if _, err := Parse(doc); err == nil {
		t.Error("expected an error for an invalid housekeeping interval")
	}
}

func TestParse_RejectsBadLifetime(t *testing.T) {
	doc := []byte(`{
		"listenSocket": "0.0.0.0:8080",
		"storage": {
			"type": "Memory",
			"housekeeping": { "interval": "1s", "batchSize": 1 },
			"sites": [
				{
					"id": "60601796-7dc2-4d4f-afae-5728592bba6f",
					"apiKey": "cool",
					"difficulty": 1,
					"prefixes": 1,
					"prefixLength": 1,
					"prefixesToSolve": 1,
					"solutionLength": 1,
					"lifetime": { "minutes": 2, "seconds": 21 }
				}
			]
		}
	}`)

	if _, err := Parse(doc); err == nil {
		t.Error("expected an error for a dual-field lifetime")
	}
}

func TestServerConfig_Validate(t *testing.T) {
	valid := ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid config to pass, got: %v", err)
	}

	invalid := valid
	invalid.ReadTimeout = 0
	if err := invalid.Validate(); err == nil {
		t.Error("expected zero ReadTimeout to fail validation")
	}
}
