package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers"
)

func TestProvider_Generate(t *testing.T) {
	p := New("local-1", providers.Config{Capabilities: []string{"chat"}})
	require.NoError(t, p.Initialize(context.Background()))

	resp, err := p.Generate(context.Background(), &providers.GenerateRequest{
		Messages: []providers.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "echo this back"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "echo this back", resp.Content)
	assert.Equal(t, "local-default", resp.Model)
	assert.Equal(t, 5, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Zero(t, resp.Cost)
	assert.Equal(t, "local-1", resp.Provider)
}

func TestProvider_Generate_Cancelled(t *testing.T) {
	p := New("local-1", providers.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, &providers.GenerateRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_CustomGenerator(t *testing.T) {
	p := New("local-1", providers.Config{}).WithGenerator(func(*providers.GenerateRequest) string {
		return "fixed output"
	})

	resp, err := p.Generate(context.Background(), &providers.GenerateRequest{Model: "custom"})
	require.NoError(t, err)
	assert.Equal(t, "fixed output", resp.Content)
	assert.Equal(t, "custom", resp.Model)
}

func TestProvider_Metadata(t *testing.T) {
	p := New("local-1", providers.Config{Capabilities: []string{"chat", "general"}})

	assert.Equal(t, "local", p.Type())
	assert.True(t, p.HasCapability("general"))
	assert.False(t, p.HasCapability("vision"))
	assert.Zero(t, p.EstimateCost(nil))
	assert.Equal(t, []string{"local-default"}, p.ListModels())
}
