// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/tomasrey88/plantavoz/pkg/provider/stt"
)

// Compile-time interface check.
var _ stt.Provider = (*Provider)(nil)

// Provider is a configurable stt.Provider double.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Err is nil.
	Text string

	// Err is returned by Transcribe when non-nil.
	Err error

	// Calls records every Transcribe invocation's mime type.
	Calls []string
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(_ context.Context, _ []byte, mimeType string) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, mimeType)
	p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "mock" }

// CallCount returns how many times Transcribe was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
