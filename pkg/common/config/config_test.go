package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort != "8090" || cfg.Scorer != ScorerLocal || cfg.Threshold != 0.5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Persist {
		t.Fatal("persistence should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("RXLINK_THRESHOLD", "0.7")
	t.Setenv("RXLINK_PERSIST", "true")
	t.Setenv("RXLINK_SCORER", "Remote")
	t.Setenv("RXLINK_MODEL_ENDPOINT", "http://models:8500")
	t.Setenv("SCORING_TIMEOUT", "750ms")
	t.Setenv("RXLINK_BATCH_WORKERS", "not-a-number")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.Threshold != 0.7 || !cfg.Persist || cfg.Scorer != ScorerRemote {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ScoringTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected timeout %v", cfg.ScoringTimeout)
	}
	if cfg.BatchWorkers != 8 {
		t.Fatalf("malformed value should fall back to default, got %d", cfg.BatchWorkers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"remote without endpoint", func(c *Config) { c.Scorer = ScorerRemote; c.ModelEndpoint = "" }, "RXLINK_MODEL_ENDPOINT"},
		{"local without artifact", func(c *Config) { c.ModelArtifact = "" }, "RXLINK_MODEL_ARTIFACT"},
		{"unknown scorer", func(c *Config) { c.Scorer = "magic" }, "RXLINK_SCORER"},
		{"threshold too high", func(c *Config) { c.Threshold = 1 }, "RXLINK_THRESHOLD"},
		{"no workers", func(c *Config) { c.BatchWorkers = 0 }, "RXLINK_BATCH_WORKERS"},
		{"client id without token url", func(c *Config) {
			c.Scorer = ScorerRemote
			c.ModelEndpoint = "http://models"
			c.OAuthClientID = "rxlink"
		}, "SCORING_OAUTH_TOKEN_URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestServingDefaultsDoNotCollide(t *testing.T) {
	cfg := Load()
	if cfg.Addr() == cfg.ServingAddr() {
		t.Fatalf("both services default to %s", cfg.Addr())
	}
	if err := cfg.ValidateServing(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateServingRejects(t *testing.T) {
	t.Setenv("RXLINK_MODEL_ARTIFACT", " a.json, ,b.json ")
	cfg := Load()
	if paths := cfg.ArtifactPaths(); len(paths) != 2 || paths[1] != "b.json" {
		t.Fatalf("unexpected artifact paths %v", paths)
	}

	cfg.ServingPort = cfg.ServerPort
	if err := cfg.ValidateServing(); err == nil || !strings.Contains(err.Error(), "SERVING_PORT") {
		t.Fatalf("expected port collision, got %v", err)
	}

	cfg = Load()
	cfg.ModelArtifact = " , "
	if err := cfg.ValidateServing(); err == nil || !strings.Contains(err.Error(), "RXLINK_MODEL_ARTIFACT") {
		t.Fatalf("expected missing artifact, got %v", err)
	}
}
