package resilience

import (
	"context"

	"github.com/tomasrey88/plantavoz/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple model backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
// The extractor degrades gracefully on its own, so this layer exists to keep
// structured extraction working through a single backend outage rather than
// falling back to raw-text titles.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Name returns the primary backend's name.
func (f *LLMFallback) Name() string {
	return f.group.entries[0].value.Name()
}
