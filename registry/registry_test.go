package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const shopA = `
key: shop_a
name: Shop A
base_url: https://www.shopa.in
search_url_pattern: https://www.shopa.in/s?q={query}
brand_affinity: [Samsung, Apple]
selectors:
  search_results_container: "div.card"
  title:
    primary: "h2 a"
    fallback: "h3"
  price: ".price"
bot_detection_phrases: ["Unusual Traffic"]
`

const shopB = `
key: shop_b
name: Shop B
enabled: false
base_url: https://shopb.in
search_url_pattern: https://shopb.in/search/{query}
trust_score_base: 0.5
request_delay_ms: [100, 200]
`

func TestRegistryLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", shopB)
	writeFile(t, dir, "a.yaml", shopA)
	writeFile(t, dir, "broken.yaml", "key: [unterminated")
	writeFile(t, dir, "noplaceholder.yaml", "key: x\nbase_url: https://x.in\nsearch_url_pattern: https://x.in/s\n")
	writeFile(t, dir, "notes.txt", "ignored")

	r, err := New(dir)
	require.NoError(t, err)

	require.Equal(t, 2, r.Len())
	all := r.All()
	assert.Equal(t, "shop_a", all[0].Key)
	assert.Equal(t, "shop_b", all[1].Key)

	enabled := r.AllEnabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "shop_a", enabled[0].Key)

	a, ok := r.Get("shop_a")
	require.True(t, ok)
	assert.Equal(t, "h2 a", a.Selectors.Title.Primary)
	assert.Equal(t, "h3", a.Selectors.Title.Fallback)
	assert.Equal(t, "div.card", a.Selectors.Container.Primary)
	assert.Equal(t, []string{"samsung", "apple"}, a.BrandAffinity)
	assert.Equal(t, []string{"unusual traffic"}, a.BotPhrases)
	assert.Equal(t, 5, a.MaxResults)
	assert.InDelta(t, 0.7, a.Trust(), 1e-9)
	assert.True(t, a.Scroll())
	assert.Equal(t, "shopa.in", a.Domain())

	b, _ := r.Get("shop_b")
	lo, hi := b.DelayRange()
	assert.Equal(t, 100*time.Millisecond, lo)
	assert.Equal(t, 200*time.Millisecond, hi)
	assert.InDelta(t, 0.5, b.Trust(), 1e-9)
}

func TestFilterByKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", shopA)
	writeFile(t, dir, "b.yaml", shopB)
	r, err := New(dir)
	require.NoError(t, err)

	got := r.FilterByKeys([]string{"shop_b", "missing", "shop_a"})
	require.Len(t, got, 1)
	assert.Equal(t, "shop_a", got[0].Key)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", shopA)
	r, err := New(dir)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	writeFile(t, dir, "b.yaml", shopB)
	n, err := r.Reload()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMissingDir(t *testing.T) {
	r, err := New(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.AllEnabled())
}

func TestSearchURLAndBrand(t *testing.T) {
	c := &MarketplaceConfig{
		Key:              "k",
		BaseURL:          "https://k.in",
		SearchURLPattern: "https://k.in/s?q={query}",
		BrandAffinity:    []string{"samsung"},
	}
	require.NoError(t, c.normalize())
	assert.Equal(t, "https://k.in/s?q=galaxy+s24+%26+more", c.SearchURL("galaxy s24 & more"))
	assert.True(t, c.AcceptsBrand("Samsung"))
	assert.False(t, c.AcceptsBrand("apple"))
	assert.True(t, c.AcceptsBrand(""))
}

func TestShippedMarketplacesLoad(t *testing.T) {
	r, err := New(filepath.Join("..", "marketplaces"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.Len(), 8)
	amazon, ok := r.Get("amazon")
	require.True(t, ok)
	assert.Equal(t, ParserAmazon, amazon.Parser)
	assert.NotEmpty(t, amazon.BotPhrases)
}
