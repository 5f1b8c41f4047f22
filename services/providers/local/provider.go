// Package local implements an in-process provider backed by a local
// inference endpoint. It is also the zero-cost stand-in used in
// development environments without external API access.
package local

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers"
)

const defaultModel = "local-default"

// Provider serves generation requests without leaving the process
type Provider struct {
	id  string
	cfg providers.Config

	// generate produces the response content; the default echoes the
	// last user message
	generate func(req *providers.GenerateRequest) string
}

// Builder returns the constructor the registry uses for "local" providers
func Builder() providers.Builder {
	return func(id string, cfg providers.Config) (providers.Provider, error) {
		return New(id, cfg), nil
	}
}

// New creates a local provider
func New(id string, cfg providers.Config) *Provider {
	return &Provider{
		id:  id,
		cfg: cfg,
		generate: func(req *providers.GenerateRequest) string {
			for i := len(req.Messages) - 1; i >= 0; i-- {
				if req.Messages[i].Role == "user" {
					return req.Messages[i].Content
				}
			}
			return ""
		},
	}
}

// WithGenerator overrides the content function
func (p *Provider) WithGenerator(fn func(req *providers.GenerateRequest) string) *Provider {
	p.generate = fn
	return p
}

// ID returns the registry-assigned instance id
func (p *Provider) ID() string { return p.id }

// Type returns "local"
func (p *Provider) Type() string { return "local" }

// Initialize always succeeds; there is no remote dependency to verify
func (p *Provider) Initialize(context.Context) error { return nil }

// Generate produces a response from the configured generator function
func (p *Provider) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generation cancelled: %w", err)
	}

	start := time.Now()
	content := p.generate(req)

	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(strings.Fields(msg.Content))
	}
	completionTokens := len(strings.Fields(content))

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	return &providers.GenerateResponse{
		ID:      uuid.New(),
		Model:   model,
		Content: content,
		Usage: providers.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		Cost:     0,
		Provider: p.id,
		Latency:  time.Since(start),
		Created:  time.Now(),
	}, nil
}

// HasCapability checks the configured capability list
func (p *Provider) HasCapability(capability string) bool {
	for _, c := range p.cfg.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ListModels returns the single local model
func (p *Provider) ListModels() []string { return []string{defaultModel} }

// EstimateCost is always zero for local inference
func (p *Provider) EstimateCost(*providers.GenerateRequest) float64 { return 0 }
