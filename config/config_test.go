package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecompare/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PC_LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	cfg := Load()

	assert.Equal(t, 4, cfg.Orchestrator.Concurrency)
	assert.Equal(t, 300*time.Millisecond, cfg.Orchestrator.Stagger)
	assert.Equal(t, 5, cfg.Orchestrator.MaxPerSite)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.InDelta(t, 0.4, cfg.Matcher.MinScore, 1e-9)
	assert.Equal(t, 25, cfg.LLM.CallsPerMinute)
	assert.Equal(t, 2500*time.Millisecond, cfg.LLM.MinGap)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.LLM.Enabled, "llm must be off without a key")
	assert.Equal(t, cfg.Orchestrator.Concurrency, cfg.MaxSessions())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PC_CONCURRENCY", "2")
	t.Setenv("PC_MAX_SESSIONS", "6")
	t.Setenv("PC_ESCALATION_DELAYS", "0s, 1s,bogus")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("PC_BLOCKED_RESOURCES", "Image, ,Media")

	cfg := Load()

	assert.Equal(t, 2, cfg.Orchestrator.Concurrency)
	assert.Equal(t, 6, cfg.MaxSessions())
	assert.Equal(t, []time.Duration{0, time.Second}, cfg.Engine.EscalationDelays)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, []string{"Image", "Media"}, cfg.Scraper.BlockedResourceTypes)
}

func TestEnvWeightsOr(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  models.Weights
	}{
		{"valid", "0.5,0.3,0.2", models.Weights{Price: 0.5, Delivery: 0.3, Trust: 0.2}},
		{"does not sum to one", "0.5,0.5,0.5", DefaultWeights()[models.ModeCheapest]},
		{"wrong arity", "1,0", DefaultWeights()[models.ModeCheapest]},
		{"negative", "1.2,-0.2,0", DefaultWeights()[models.ModeCheapest]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_W_CHEAPEST", tt.value)
			got := envWeightsOr("TEST_W_", DefaultWeights())
			require.Contains(t, got, models.ModeCheapest)
			assert.InDelta(t, tt.want.Price, got[models.ModeCheapest].Price, 1e-9)
			assert.InDelta(t, tt.want.Delivery, got[models.ModeCheapest].Delivery, 1e-9)
			assert.InDelta(t, tt.want.Trust, got[models.ModeCheapest].Trust, 1e-9)
			assert.Equal(t, DefaultWeights()[models.ModeBalanced], got[models.ModeBalanced])
		})
	}
}
