package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/pricecompare/models"
)

func TestDelivery(t *testing.T) {
	assert.Equal(t, "unknown", delivery(nil, nil))
	assert.Equal(t, "today", delivery(models.Int(0), models.Int(0)))
	assert.Equal(t, "1 day", delivery(models.Int(1), models.Int(1)))
	assert.Equal(t, "3-5 days", delivery(models.Int(3), models.Int(5)))
	assert.Equal(t, "4 days", delivery(nil, models.Int(4)))
}

func TestCellHelpers(t *testing.T) {
	assert.Equal(t, "-", price(nil))
	assert.Equal(t, "₹124,999", price(models.Float(124999)))
	assert.Equal(t, "4.3 (1200)", rating(models.Float(4.3), models.Int(1200)))
	assert.Equal(t, "-", rating(nil, models.Int(3)))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "croma", siteLabel("", "croma"))
}

func TestRenderResponse(t *testing.T) {
	resp := &models.CompareResponse{
		Mode:     models.ModeCheapest,
		Product:  models.TargetProduct{Brand: "Samsung", Model: "Galaxy S24", Storage: "128GB"},
		Attempts: 1,
		Statuses: []models.SiteStatus{
			{Key: "croma", Name: "Croma", Status: models.StatusOK, ListingsFound: 4},
			{Key: "amazon", Status: models.StatusBotChallenge, Message: "captcha"},
		},
		Offers: []*models.NormalizedOffer{{
			Rank: 1, Platform: "croma", PlatformName: "Croma", Title: "Samsung Galaxy S24 5G",
			EffectivePrice: models.Float(64999), DeliveryDaysMax: models.Int(1),
			Score: models.ScoreBreakdown{Final: 0.8123}, Badges: []string{models.BadgeRecommended, models.BadgeBestPrice},
		}},
		Explanation: "Top pick for cheapest.",
		Errors:      []string{"amazon: captcha"},
	}

	var buf bytes.Buffer
	renderResponse(&buf, resp)
	out := buf.String()

	assert.Contains(t, out, "Product: Samsung Galaxy S24 128GB")
	assert.Contains(t, out, "bot_challenge")
	assert.Contains(t, out, "₹64,999")
	assert.Contains(t, out, "0.812")
	assert.Contains(t, out, "Recommended, Best Price")
	assert.Contains(t, out, "Top pick for cheapest.")
	assert.Contains(t, out, "warning: amazon: captcha")
}

func TestValidate(t *testing.T) {
	ok := models.CompareRequest{Query: "galaxy s24", Mode: "fastest"}
	assert.NoError(t, validate(ok))

	bad := []models.CompareRequest{
		{Query: "x", Mode: "balanced"},
		{Query: "galaxy s24", Mode: "cheapest-ish"},
		{Query: "galaxy s24", Mode: "balanced", MaxPerSite: 21},
	}
	for _, r := range bad {
		assert.Error(t, validate(r), r)
	}
}
