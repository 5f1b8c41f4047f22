// Package providers holds the provider registry: the capability catalog,
// scored instance selection, rotation tracking, and fallback chain
// resolution for AI model providers.
package providers

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Provider is the unified interface every model provider implements
type Provider interface {
	// ID returns the unique instance id assigned at registration
	ID() string

	// Type returns the provider type (e.g., "openai", "local")
	Type() string

	// Initialize prepares the provider for use. It is called once during
	// registration; a failure aborts the registration.
	Initialize(ctx context.Context) error

	// Generate performs a generation request
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// HasCapability checks whether the provider supports a capability
	HasCapability(capability string) bool

	// ListModels returns all models offered by this provider
	ListModels() []string

	// EstimateCost estimates the cost of a request in USD. A nil request
	// yields the provider's default estimate.
	EstimateCost(req *GenerateRequest) float64
}

// Message is a single conversation message
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// GenerateRequest is a unified generation request
type GenerateRequest struct {
	// Model identifier (logical name, mapped per provider)
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature,omitempty"`

	// Stop sequences
	Stop []string `json:"stop,omitempty"`

	// Metadata for tracking and logging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Usage holds token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResponse is a unified generation response
type GenerateResponse struct {
	// ID identifies this completion
	ID uuid.UUID `json:"id"`

	// Model used for the completion
	Model string `json:"model"`

	// Content is the generated text
	Content string `json:"content"`

	// Usage statistics
	Usage Usage `json:"usage"`

	// Cost of the request in USD
	Cost float64 `json:"cost"`

	// Provider instance that handled the request
	Provider string `json:"provider"`

	// Latency of the request
	Latency time.Duration `json:"latency"`

	// Created timestamp
	Created time.Time `json:"created"`
}

// Config holds common configuration handed to provider builders
type Config struct {
	// Credential authenticates against the provider API
	Credential string

	// BaseURL overrides the provider endpoint
	BaseURL string

	// Timeout bounds a single generation request
	Timeout time.Duration

	// ModelMap maps logical model names to provider model ids
	ModelMap map[string]string

	// DefaultParameters holds provider default request parameters
	DefaultParameters map[string]interface{}

	// Capabilities lists the capability names this provider serves
	Capabilities []string
}

// Builder constructs a provider instance of one type. The id is the
// registry-assigned instance id.
type Builder func(id string, cfg Config) (Provider, error)
