package config

import (
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
server:
  log_level: debug
  metrics_addr: ":9090"
discord:
  token: "Bot abc"
  guild_id: "123"
providers:
  stt:
    name: whisper
    base_url: "http://localhost:8080"
  llm:
    name: openai
    api_key: "sk-test"
    model: gpt-4o-mini
store:
  postgres_dsn: "postgres://localhost/plantavoz"
  company_id: 7
capture:
  interactive_ttl: 90s
queue:
  max_depth: 10
resolver:
  accept_threshold: 0.85
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Providers.STT.Name != "whisper" {
		t.Errorf("stt provider = %q, want whisper", cfg.Providers.STT.Name)
	}
	if cfg.Store.CompanyID != 7 {
		t.Errorf("company id = %d, want 7", cfg.Store.CompanyID)
	}
	if cfg.Capture.InteractiveTTL != 90*time.Second {
		t.Errorf("interactive ttl = %v, want 90s", cfg.Capture.InteractiveTTL)
	}
	if cfg.Queue.MaxDepth != 10 {
		t.Errorf("queue max depth = %d, want 10", cfg.Queue.MaxDepth)
	}
	if cfg.Resolver.AcceptThreshold != 0.85 {
		t.Errorf("accept threshold = %v, want 0.85", cfg.Resolver.AcceptThreshold)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("server:\n  log_level: info\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Capture.InteractiveTTL != 2*time.Minute {
		t.Errorf("interactive ttl default = %v, want 2m", cfg.Capture.InteractiveTTL)
	}
	if cfg.Capture.WaitingTTL != 5*time.Minute {
		t.Errorf("waiting ttl default = %v, want 5m", cfg.Capture.WaitingTTL)
	}
	if cfg.Capture.SweepInterval != time.Minute {
		t.Errorf("sweep interval default = %v, want 1m", cfg.Capture.SweepInterval)
	}
	if cfg.Queue.MaxDepth != 50 {
		t.Errorf("queue depth default = %d, want 50", cfg.Queue.MaxDepth)
	}
	if cfg.Queue.JobTimeout != 120*time.Second {
		t.Errorf("job timeout default = %v, want 120s", cfg.Queue.JobTimeout)
	}
	if cfg.Resolver.AcceptThreshold != 0.8 {
		t.Errorf("accept threshold default = %v, want 0.8", cfg.Resolver.AcceptThreshold)
	}
	if cfg.Resolver.GroupBoost != 0.15 || cfg.Resolver.GroupPenalty != 0.2 {
		t.Errorf("group boost/penalty defaults = %v/%v, want 0.15/0.2",
			cfg.Resolver.GroupBoost, cfg.Resolver.GroupPenalty)
	}
	if len(cfg.Capture.CancelWords) == 0 {
		t.Error("cancel words default is empty")
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("nonsense: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "server:\n  log_level: loud\n"},
		{"unknown stt provider", "providers:\n  stt:\n    name: vosk\n"},
		{"unknown llm provider", "providers:\n  llm:\n    name: gpt9\n"},
		{"token without guild", "discord:\n  token: \"Bot x\"\n"},
		{"threshold above one", "resolver:\n  accept_threshold: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := LoadFromReader(strings.NewReader(tt.yaml)); err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
		})
	}
}
