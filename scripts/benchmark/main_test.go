package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRun(t *testing.T) {
	body := `{"success":true,"attempts":2,"counts":{"raw_listings":14,"ranked_offers":3},
		"site_statuses":[{"key":"croma","status":"ok"},{"key":"amazon","status":"bot_challenge"}],
		"best_deal":{"platform":"croma","effective_price":64999},"cache_status":"bypass"}`
	rr := decodeRun(runResult{StatusCode: 200}, strings.NewReader(body))

	assert.True(t, rr.Success)
	assert.Equal(t, 2, rr.Attempts)
	assert.Equal(t, 14, rr.Raw)
	assert.Equal(t, 3, rr.Ranked)
	assert.Equal(t, 1, rr.SitesOK)
	assert.Equal(t, 2, rr.Sites)
	assert.Equal(t, 64999.0, rr.BestPrice)
	assert.Equal(t, "bypass", rr.Cache)
}

func TestDecodeRun_Error(t *testing.T) {
	body := `{"success":false,"error":{"code":"INVALID_INPUT","message":"query is required"}}`
	rr := decodeRun(runResult{StatusCode: 400}, strings.NewReader(body))
	assert.False(t, rr.Success)
	assert.Equal(t, "query is required", rr.Error)

	rr = decodeRun(runResult{StatusCode: 502}, strings.NewReader("bad gateway"))
	assert.Equal(t, "HTTP 502", rr.Error)
}

func TestComputeAverages(t *testing.T) {
	assert.Nil(t, computeAverages([]runResult{{Success: false}}))

	avg := computeAverages([]runResult{
		{Success: true, LatencyMs: 1000, Attempts: 1, Ranked: 4, SitesOK: 3, Sites: 4},
		{Success: true, LatencyMs: 3000, Attempts: 2, Ranked: 2, SitesOK: 4, Sites: 4},
		{Success: false, LatencyMs: 99999},
	})
	require.NotNil(t, avg)
	assert.Equal(t, 2000.0, avg.LatencyMs)
	assert.Equal(t, 1.5, avg.Attempts)
	assert.Equal(t, 3.0, avg.Ranked)
	assert.InDelta(t, 0.875, avg.SiteYield, 1e-9)
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []queryResult{
		{Query: "Galaxy S24", Mode: "balanced", Averages: &queryAverages{LatencyMs: 12345, Attempts: 1, Ranked: 3, SiteYield: 0.75}},
		{Query: "Pixel 9", Mode: "cheapest"},
	})
	out := buf.String()
	assert.Contains(t, out, "12345ms")
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "FAILED")
}
