package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelax(t *testing.T) {
	target := TargetProduct{
		Brand:       "Samsung",
		Model:       "Galaxy S24 Ultra",
		Storage:     "256GB",
		Variant:     "ultra",
		RawQuery:    "samsung galaxy s24 ultra 256gb",
		SearchQuery: "Samsung Galaxy S24 Ultra 256GB",
	}

	t.Run("attempt 0 is unchanged", func(t *testing.T) {
		assert.Equal(t, target, target.Relax(0))
	})

	t.Run("attempt 1 drops storage", func(t *testing.T) {
		r := target.Relax(1)
		assert.Empty(t, r.Storage)
		assert.Equal(t, "Galaxy S24 Ultra", r.Model)
		assert.Equal(t, "Samsung Galaxy S24 Ultra", r.SearchQuery)
	})

	t.Run("attempt 2 strips variants", func(t *testing.T) {
		r := target.Relax(2)
		assert.Empty(t, r.Storage)
		assert.Empty(t, r.Variant)
		assert.Equal(t, "Galaxy S24", r.Model)
		assert.Equal(t, "Samsung Galaxy S24", r.SearchQuery)
	})

	t.Run("original untouched", func(t *testing.T) {
		_ = target.Relax(2)
		assert.Equal(t, "256GB", target.Storage)
	})
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want RankingMode
	}{
		{"cheapest", ModeCheapest},
		{" FASTEST ", ModeFastest},
		{"reliable", ModeReliable},
		{"", ModeBalanced},
		{"bogus", ModeBalanced},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMode(tt.in))
		})
	}
}
