package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomasrey88/plantavoz/internal/config"
	"github.com/tomasrey88/plantavoz/internal/resolve"
	storemock "github.com/tomasrey88/plantavoz/internal/store/mock"
	llmmock "github.com/tomasrey88/plantavoz/pkg/provider/llm/mock"
	sttmock "github.com/tomasrey88/plantavoz/pkg/provider/stt/mock"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

// TestNewWiresSubsystems builds the whole application against in-memory
// doubles and exercises its lifecycle end to end. One test so the global
// metrics provider is initialised exactly once per test binary.
func TestNewWiresSubsystems(t *testing.T) {
	ctx := context.Background()

	a, err := New(ctx, testConfig(), &Providers{
		STT: &sttmock.Provider{Text: "hola"},
		LLM: &llmmock.Provider{Content: "{}"},
	}, WithRecordStore(storemock.New()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Pipeline() == nil {
		t.Fatal("pipeline not wired")
	}
	if a.Health() == nil {
		t.Fatal("health handler not wired")
	}

	// The mock store has no Ping and Discord is disabled, so readiness has
	// no checkers and reports ok.
	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	a.Health().Readyz(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want %d", rec.Code, http.StatusOK)
	}

	// Run until cancelled; the worker loops must unwind cleanly.
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	// Shutdown is idempotent.
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNewRequiresProviders(t *testing.T) {
	ctx := context.Background()
	records := WithRecordStore(storemock.New())

	if _, err := New(ctx, testConfig(), &Providers{STT: &sttmock.Provider{}}, records); err == nil {
		t.Error("New accepted a missing LLM provider")
	}
	if _, err := New(ctx, testConfig(), &Providers{LLM: &llmmock.Provider{}}, records); err == nil {
		t.Error("New accepted a missing STT provider")
	}
}

func TestResolverConfigMapping(t *testing.T) {
	got := resolverConfig(config.ResolverConfig{
		AcceptThreshold: 0.9,
		AcceptMargin:    0.1,
		FuzzyThreshold:  0.5,
		GroupBoost:      0.2,
		GroupPenalty:    0.3,
	})
	want := resolve.Config{
		AcceptThreshold: 0.9,
		AcceptMargin:    0.1,
		FuzzyThreshold:  0.5,
		GroupBoost:      0.2,
		GroupPenalty:    0.3,
	}
	if got != want {
		t.Errorf("resolverConfig = %+v, want %+v", got, want)
	}
}
