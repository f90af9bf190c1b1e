package extractor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"₹64,999", 64999, true},
		{"₹1,29,999.00", 129999, true},
		{"Rs. 999", 999, true},
		{"Rs 1,499", 1499, true},
		{"INR 2,500", 2500, true},
		{"MRP: ₹74,999", 74999, true},
		{"₹ 64,999 ₹79,999", 64999, true},
		{"₹499.50", 499.5, true},
		{"₹12,34,567.89", 0, false},
		{"INR1299900", 0, false},
		{"₹49", 0, false},
		{"Out of stock", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4.3 out of 5 stars", 4.3, true},
		{"4.5/5", 4.5, true},
		{"4.1", 4.1, true},
		{"0", 0, true},
		{"12 ratings", 0, false},
		{"no rating", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRating(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1,234 ratings", 1234, true},
		{"(12)", 12, true},
		{"1.2k", 1200, true},
		{"3L reviews", 300000, true},
		{"2 lakh ratings", 200000, true},
		{"no reviews", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseReviewCount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDelivery(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		found    bool
	}{
		{"Delivery in 2-5 days", 2, 5, true},
		{"3 to 6 days", 3, 6, true},
		{"Prime delivery in 2 days", 2, 2, true},
		{"Get it today", 0, 0, true},
		{"FREE delivery Tomorrow", 1, 1, true},
		{"Delivery by Monday", 1, 3, true},
		{"Arrives Saturday", 1, 4, true},
		{"FREE delivery 28 Feb", 1, 7, true},
		{"Usually ships soon", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lo, hi := ParseDelivery(tt.in)
			if !tt.found {
				assert.Nil(t, lo)
				assert.Nil(t, hi)
				return
			}
			require.NotNil(t, lo)
			require.NotNil(t, hi)
			assert.Equal(t, tt.min, *lo)
			assert.Equal(t, tt.max, *hi)
		})
	}
}

func TestCleanURL(t *testing.T) {
	amazon := &registry.MarketplaceConfig{Key: "amazon", BaseURL: "https://www.amazon.in"}
	flipkart := &registry.MarketplaceConfig{Key: "flipkart", BaseURL: "https://www.flipkart.com"}
	croma := &registry.MarketplaceConfig{Key: "croma", BaseURL: "https://www.croma.com"}

	tests := []struct {
		name string
		raw  string
		cfg  *registry.MarketplaceConfig
		want string
	}{
		{"amazon asin", "/Samsung-Galaxy-S24/dp/B0CS5XW6TN/ref=sr_1_1?keywords=s24", amazon, "https://www.amazon.in/dp/B0CS5XW6TN"},
		{"amazon no asin", "https://www.amazon.in/gp/offer/ref=x?tag=a", amazon, "https://www.amazon.in/gp/offer"},
		{"flipkart pid", "/samsung-galaxy-s24/p/itm123?pid=MOBGX&lid=LST&marketplace=FLIPKART", flipkart, "https://www.flipkart.com/samsung-galaxy-s24/p/itm123?pid=MOBGX"},
		{"flipkart no pid", "https://www.flipkart.com/x/p/itm1?otracker=search", flipkart, "https://www.flipkart.com/x/p/itm1"},
		{"tracking stripped", "https://www.croma.com/p/123?utm_source=g&color=black", croma, "https://www.croma.com/p/123?color=black"},
		{"relative resolved", "p/456", croma, "https://www.croma.com/p/456"},
		{"javascript", "javascript:void(0)", croma, ""},
		{"empty", "", croma, ""},
		{"relative without base", "/p/1", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanURL(tt.raw, tt.cfg))
		})
	}
}

func TestFallbackURL(t *testing.T) {
	cfg := &registry.MarketplaceConfig{Key: "croma", SearchURLPattern: "https://www.croma.com/searchB?q={query}"}
	got := FallbackURL("Samsung Galaxy S24 5G AI Smartphone (Onyx Black, 8GB RAM, 128GB Storage) with offers", cfg)
	assert.Equal(t, "https://www.croma.com/searchB?q=Samsung+Galaxy+S24+5G+AI+Smartphone+%28Onyx+Black%2C+8GB+RAM%2C+12", got)
	assert.Empty(t, FallbackURL("x", nil))
}

type lookupMap map[string]*registry.MarketplaceConfig

func (m lookupMap) Get(key string) (*registry.MarketplaceConfig, bool) {
	c, ok := m[key]
	return c, ok
}

func testLookup() lookupMap {
	return lookupMap{
		"croma": {Key: "croma", Name: "Croma", BaseURL: "https://www.croma.com",
			SearchURLPattern: "https://www.croma.com/searchB?q={query}"},
	}
}

func TestNormalize(t *testing.T) {
	cfg := testLookup()["croma"]
	o := Normalize(models.RawListing{
		Platform:      "croma",
		Title:         "  Samsung Galaxy S24 (128GB)  ",
		Price:         "₹64,999.499",
		OriginalPrice: "₹74,999",
		Rating:        "4.4 out of 5",
		ReviewCount:   "1.2k ratings",
		Delivery:      "Delivery by tomorrow",
		ListingURL:    "/p/1?utm_source=x",
	}, cfg)

	assert.Equal(t, "Croma", o.PlatformName)
	assert.Equal(t, "Samsung Galaxy S24 (128GB)", o.Title)
	require.NotNil(t, o.EffectivePrice)
	assert.InDelta(t, 64999.49, *o.EffectivePrice, 0.001)
	assert.InDelta(t, 74999, *o.BasePrice, 0.001)
	assert.InDelta(t, 4.4, *o.Rating, 0.001)
	assert.Equal(t, 1200, *o.ReviewCount)
	assert.Equal(t, 1, *o.DeliveryDaysMax)
	assert.Equal(t, "https://www.croma.com/p/1", o.ListingURL)
	assert.False(t, o.SearchLink)

	t.Run("base falls back to selling price", func(t *testing.T) {
		o := Normalize(models.RawListing{Platform: "croma", Title: "x", Price: "₹999"}, cfg)
		assert.InDelta(t, 999, *o.BasePrice, 0.001)
		assert.True(t, o.SearchLink)
		assert.Contains(t, o.ListingURL, "searchB?q=x")
	})

	t.Run("no price", func(t *testing.T) {
		o := Normalize(models.RawListing{Platform: "croma", Title: "x", Price: "Coming soon"}, cfg)
		assert.Nil(t, o.EffectivePrice)
		assert.Nil(t, o.BasePrice)
	})
}

func TestExtract(t *testing.T) {
	listings := []models.RawListing{
		{Platform: "croma", Title: "Galaxy S24", Price: "₹64,999", ListingURL: "/p/1"},
		{Platform: "croma", Title: "Galaxy S24 dup", Price: "₹64,999", ListingURL: "/p/1?utm_source=x"},
		{Platform: "croma", Title: "Galaxy S24 no price", Price: "Notify me", ListingURL: "/p/2"},
		{Platform: "croma", Title: "", Price: "₹1,000"},
		{Platform: "croma", Title: "Galaxy S24 FE", Price: "₹39,999"},
		{Platform: "croma", Title: "galaxy s24   fe", Price: "₹39,999"},
	}

	t.Run("keep null price", func(t *testing.T) {
		res := Extract(listings, testLookup(), Options{})
		assert.Equal(t, 1, res.NullPrice)
		assert.Equal(t, 2, res.Duplicates)
		require.Len(t, res.Offers, 3)
		for i, o := range res.Offers {
			assert.Equal(t, i, o.Seq)
		}
		assert.Nil(t, res.Offers[1].EffectivePrice)
	})

	t.Run("drop null price", func(t *testing.T) {
		res := Extract(listings, testLookup(), Options{DropNullPrice: true})
		assert.Equal(t, 1, res.NullPrice)
		assert.Len(t, res.Offers, 2)
	})
}

func TestDedup_Strict(t *testing.T) {
	mk := func(site, title string, price float64, url string) *models.NormalizedOffer {
		return &models.NormalizedOffer{Platform: site, Title: title, EffectivePrice: models.Float(price), ListingURL: url}
	}
	offers := []*models.NormalizedOffer{
		mk("a", "Samsung Galaxy S24 5G (Onyx Black, 128 GB)", 64999, "https://a.in/1"),
		mk("a", "Samsung Galaxy S24 5G (Onyx Black, 128 GB)", 64999, "https://a.in/2"),
		mk("a", "Samsung Galaxy S24 5G (Onyx Black, 128 GB)", 62999, "https://a.in/3"),
		mk("b", "Samsung Galaxy S24 5G (Onyx Black, 128 GB)", 64999, "https://b.in/1"),
	}

	loose, dropped := Dedup(offers, Options{})
	assert.Len(t, loose, 4)
	assert.Zero(t, dropped)

	strict, dropped := Dedup(offers, Options{Strict: true, NearTitleDistance: 3})
	assert.Len(t, strict, 3)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "https://a.in/1", strict[0].ListingURL)
}

type fakeEnricher struct {
	mu     sync.Mutex
	calls  []string
	fields map[string]*models.CardFields
}

func (f *fakeEnricher) ExtractCard(_ context.Context, text, site string) (*models.CardFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	for k, v := range f.fields {
		if k != "" && strings.Contains(text, k) {
			return v, nil
		}
	}
	return nil, errors.New("unavailable")
}

func TestEnrich(t *testing.T) {
	enricher := &fakeEnricher{fields: map[string]*models.CardFields{
		"Galaxy S24": {Price: models.Float(64999), DeliveryDaysMax: models.Int(2), Rating: models.Float(4.2)},
		"Back Cover": {IsAccessory: true},
	}}
	listings := []models.RawListing{
		{Platform: "croma", Title: "Galaxy S24", Price: "", CardHTML: "<div><h3>Galaxy S24</h3><p>Offer price 64999</p></div>"},
		{Platform: "croma", Title: "Galaxy S24 Ultra", Price: "₹1,19,999", CardHTML: "<div>Galaxy S24 Ultra</div>"},
		{Platform: "croma", Title: "S24 Back Cover", Price: "", CardHTML: "<div>S24 Back Cover for sale</div>"},
		{Platform: "croma", Title: "Unknown", Price: "", CardHTML: "<div>Something else entirely</div>"},
		{Platform: "croma", Title: "No card", Price: ""},
	}

	out, n := Enrich(context.Background(), listings, enricher, testLookup())
	assert.Equal(t, 1, n)
	assert.Len(t, enricher.calls, 3)
	require.Len(t, out, 4)
	assert.Equal(t, "₹64999", out[0].Price)
	assert.Equal(t, "in 2 days", out[0].Delivery)
	assert.Equal(t, "4.2", out[0].Rating)
	assert.Equal(t, "₹1,19,999", out[1].Price)
	assert.Equal(t, "Unknown", out[2].Title)

	same, n := Enrich(context.Background(), listings, nil, nil)
	assert.Zero(t, n)
	assert.Len(t, same, 5)
}
