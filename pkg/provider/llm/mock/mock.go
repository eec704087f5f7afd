// Package mock provides a test double for the llm.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/tomasrey88/plantavoz/pkg/provider/llm"
)

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Provider is a configurable llm.Provider double.
type Provider struct {
	mu sync.Mutex

	// Content is returned by Complete when Err is nil.
	Content string

	// Err is returned by Complete when non-nil.
	Err error

	// Requests records every Complete invocation.
	Requests []llm.CompletionRequest
}

// Complete implements llm.Provider.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()
	if p.Err != nil {
		return llm.CompletionResponse{}, p.Err
	}
	return llm.CompletionResponse{Content: p.Content}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "mock" }

// CallCount returns how many times Complete was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
