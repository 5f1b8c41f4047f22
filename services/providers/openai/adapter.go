// Package openai adapts the OpenAI chat completions API to the unified
// provider interface.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Arashek/ADE-stable-1.0-sub004/services"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	defaultModel   = "gpt-4o-mini"
)

// modelPricing holds per-token prices in USD
type modelPricing struct {
	prompt     float64
	completion float64
}

// pricing covers the supported chat models
var pricing = map[string]modelPricing{
	"gpt-4":         {prompt: 0.00003, completion: 0.00006},
	"gpt-4-turbo":   {prompt: 0.00001, completion: 0.00003},
	"gpt-4o":        {prompt: 0.000005, completion: 0.000015},
	"gpt-4o-mini":   {prompt: 0.00000015, completion: 0.0000006},
	"gpt-3.5-turbo": {prompt: 0.0000005, completion: 0.0000015},
}

// Adapter implements the unified provider interface for OpenAI
type Adapter struct {
	id         string
	cfg        providers.Config
	httpClient *http.Client
}

// Builder returns the constructor the registry uses for "openai" providers
func Builder() providers.Builder {
	return func(id string, cfg providers.Config) (providers.Provider, error) {
		return New(id, cfg), nil
	}
}

// New creates an adapter. Missing base URL and timeout fall back to the
// OpenAI defaults.
func New(id string, cfg providers.Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		id:         id,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ID returns the registry-assigned instance id
func (a *Adapter) ID() string { return a.id }

// Type returns "openai"
func (a *Adapter) Type() string { return "openai" }

// Initialize verifies the credential by listing models. A failing call
// aborts the registration.
func (a *Adapter) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("building models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Credential)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return services.WrapExternal("openai unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.WrapExternal("openai credential rejected", nil)
	}
	return nil
}

// Generate performs a chat completion request
func (a *Adapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	start := time.Now()
	model := a.resolveModel(req.Model)

	body, err := json.Marshal(a.buildRequest(model, req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.Credential)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.WrapExternal("openai request timed out", err)
		}
		return nil, services.WrapExternal("openai request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, services.WrapExternal("reading openai response", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, a.errorFromResponse(httpResp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, services.WrapExternal("unmarshaling openai response", err)
	}

	content := ""
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
	}
	usage := providers.Usage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
	}

	return &providers.GenerateResponse{
		ID:       uuid.New(),
		Model:    parsed.Model,
		Content:  content,
		Usage:    usage,
		Cost:     usageCost(model, usage),
		Provider: a.id,
		Latency:  time.Since(start),
		Created:  time.Unix(parsed.Created, 0),
	}, nil
}

// HasCapability checks the configured capability list
func (a *Adapter) HasCapability(capability string) bool {
	for _, c := range a.cfg.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// ListModels returns the supported chat models
func (a *Adapter) ListModels() []string {
	models := make([]string, 0, len(pricing))
	for model := range pricing {
		models = append(models, model)
	}
	return models
}

// EstimateCost estimates the request cost in USD. A nil request assumes
// a 500-token prompt and a 500-token completion on the default model.
func (a *Adapter) EstimateCost(req *providers.GenerateRequest) float64 {
	model := defaultModel
	promptTokens := 500
	completionTokens := 500

	if req != nil {
		model = a.resolveModel(req.Model)

		// rough estimate: 4 characters per token
		chars := 0
		for _, msg := range req.Messages {
			chars += len(msg.Content)
		}
		promptTokens = chars / 4
		if req.MaxTokens > 0 {
			completionTokens = req.MaxTokens
		}
	}

	p, ok := pricing[model]
	if !ok {
		p = pricing[defaultModel]
	}
	return float64(promptTokens)*p.prompt + float64(completionTokens)*p.completion
}

// resolveModel maps a logical model name through the configured model map
func (a *Adapter) resolveModel(model string) string {
	if model == "" {
		model = defaultModel
	}
	if mapped, ok := a.cfg.ModelMap[model]; ok {
		return mapped
	}
	return model
}

// buildRequest converts the unified request to the OpenAI wire format,
// layering configured default parameters under the request values
func (a *Adapter) buildRequest(model string, req *providers.GenerateRequest) *chatRequest {
	out := &chatRequest{
		Model:    model,
		Messages: make([]chatMessage, len(req.Messages)),
	}
	for i, msg := range req.Messages {
		out.Messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	if temp, ok := a.cfg.DefaultParameters["temperature"].(float64); ok {
		out.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}
	if len(req.Stop) > 0 {
		out.Stop = req.Stop
	}
	return out
}

// errorFromResponse maps OpenAI error payloads onto domain errors
func (a *Adapter) errorFromResponse(statusCode int, body []byte) error {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return services.NewDomainError(services.ErrorTypeExternal, "openai request rejected", nil).
			WithDetail("status_code", statusCode)
	}
	return services.NewDomainError(services.ErrorTypeExternal, parsed.Error.Message, nil).
		WithDetail("status_code", statusCode).
		WithDetail("error_type", parsed.Error.Type)
}

// usageCost computes the actual cost from reported token usage
func usageCost(model string, usage providers.Usage) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*p.prompt + float64(usage.CompletionTokens)*p.completion
}

// OpenAI wire types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
