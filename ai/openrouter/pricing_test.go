package openrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		prompt     int
		completion int
		want       float64
	}{
		{"gpt-4o-mini million each", "openai/gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"gpt-4o small call", "openai/gpt-4o", 1000, 500, 0.0025 + 0.005},
		{"zero tokens", "openai/gpt-4o", 0, 0, 0},
		{"unknown model", "acme/secret", 10, 10, DefaultPricingFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateCost(tt.model, tt.prompt, tt.completion), 1e-12)
		})
	}
}

func TestGetPricing(t *testing.T) {
	p, ok := GetPricing(DefaultModel)
	assert.True(t, ok, "default model must be priced")
	assert.Greater(t, p.CompletionPrice, p.PromptPrice)

	_, ok = GetPricing("nope")
	assert.False(t, ok)
}
