package extractor

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
	"github.com/use-agent/pricecompare/simhash"
)

// Lookup resolves marketplace configs by key; *registry.Registry satisfies it.
type Lookup interface {
	Get(key string) (*registry.MarketplaceConfig, bool)
}

// Options controls extraction policy.
type Options struct {
	// DropNullPrice discards offers whose selling price did not parse.
	// When false they are kept, counted and left for the matcher to reject.
	DropNullPrice bool
	// Strict dedups on site+price+title prefix and near-identical titles
	// instead of URL or site+title.
	Strict bool
	// NearTitleDistance is the simhash distance under which two titles
	// from the same site and price are duplicates in strict mode.
	NearTitleDistance int
}

// Result is the extractor output.
type Result struct {
	Offers     []*models.NormalizedOffer
	NullPrice  int
	Duplicates int
}

// Normalize parses one listing. cfg may be nil for an unknown key.
func Normalize(l models.RawListing, cfg *registry.MarketplaceConfig) *models.NormalizedOffer {
	o := &models.NormalizedOffer{
		Platform:     l.Platform,
		PlatformName: l.Platform,
		Title:        strings.TrimSpace(l.Title),
		ImageURL:     l.ImageURL,
		Shipping:     l.Shipping,
		Seller:       l.Seller,
		ReturnPolicy: l.ReturnPolicy,
	}
	if cfg != nil {
		o.PlatformName = cfg.Name
	}

	// ── 1. Price ─────────────────────────────────────────────────────
	if v, ok := ParsePrice(l.Price); ok {
		o.DiscountedPrice = models.Float(v)
		o.EffectivePrice = models.Float(math.Round(v*100) / 100)
	}
	if v, ok := ParsePrice(l.OriginalPrice); ok {
		o.BasePrice = models.Float(v)
	} else if o.DiscountedPrice != nil {
		o.BasePrice = models.Float(*o.DiscountedPrice)
	}

	// ── 2. Rating and reviews ────────────────────────────────────────
	if v, ok := ParseRating(l.Rating); ok {
		o.Rating = models.Float(v)
	}
	if v, ok := ParseReviewCount(l.ReviewCount); ok {
		o.ReviewCount = models.Int(v)
	}

	// ── 3. Delivery ──────────────────────────────────────────────────
	o.DeliveryDaysMin, o.DeliveryDaysMax = ParseDelivery(l.Delivery)

	// ── 4. URL ───────────────────────────────────────────────────────
	o.ListingURL = CleanURL(l.ListingURL, cfg)
	if o.ListingURL == "" {
		o.ListingURL = FallbackURL(o.Title, cfg)
		o.SearchLink = o.ListingURL != ""
	}
	return o
}

// Extract normalizes every listing, then de-duplicates in arrival order.
// Offers get their arrival sequence number for stable ranking.
func Extract(listings []models.RawListing, lookup Lookup, opts Options) Result {
	var res Result
	offers := make([]*models.NormalizedOffer, 0, len(listings))
	for _, l := range listings {
		if strings.TrimSpace(l.Title) == "" {
			continue
		}
		var cfg *registry.MarketplaceConfig
		if lookup != nil {
			cfg, _ = lookup.Get(l.Platform)
		}
		o := Normalize(l, cfg)
		if o.EffectivePrice == nil {
			res.NullPrice++
			if l.Price != "" {
				slog.Debug("extractor: price did not parse", "site", l.Platform, "price", l.Price, "title", truncate(o.Title, 50))
			}
			if opts.DropNullPrice {
				continue
			}
		}
		offers = append(offers, o)
	}

	res.Offers, res.Duplicates = Dedup(offers, opts)
	for i, o := range res.Offers {
		o.Seq = i
	}
	if res.NullPrice > 0 {
		slog.Warn("extractor: offers without a price", "null_price", res.NullPrice, "total", len(offers))
	}
	slog.Info("extractor: normalized", "raw", len(listings), "offers", len(res.Offers), "duplicates", res.Duplicates)
	return res
}

var spaceRe = regexp.MustCompile(`\s+`)

func normTitle(t string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(t)), " ")
}

// Dedup keeps the first of each duplicate group. The default key is the
// lower-cased canonical URL, or site|title when there is none. Strict
// mode keys on site, price and a 40-rune title prefix, and also drops
// near-identical titles at the same site and price.
func Dedup(offers []*models.NormalizedOffer, opts Options) ([]*models.NormalizedOffer, int) {
	seen := make(map[string]struct{}, len(offers))
	type near struct {
		site  string
		price float64
		fp    uint64
	}
	var fps []near

	out := make([]*models.NormalizedOffer, 0, len(offers))
	for _, o := range offers {
		key := dedupKey(o, opts.Strict)
		if _, dup := seen[key]; dup {
			slog.Debug("extractor: duplicate dropped", "site", o.Platform, "title", truncate(o.Title, 50))
			continue
		}

		if opts.Strict && opts.NearTitleDistance > 0 && o.EffectivePrice != nil {
			fp := simhash.Title(o.Title)
			dup := false
			for _, n := range fps {
				if n.site == o.Platform && n.price == *o.EffectivePrice && simhash.Near(n.fp, fp, opts.NearTitleDistance) {
					dup = true
					break
				}
			}
			if dup {
				slog.Debug("extractor: near-duplicate dropped", "site", o.Platform, "title", truncate(o.Title, 50))
				continue
			}
			fps = append(fps, near{site: o.Platform, price: *o.EffectivePrice, fp: fp})
		}

		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out, len(offers) - len(out)
}

func dedupKey(o *models.NormalizedOffer, strict bool) string {
	if strict {
		price := "none"
		if o.EffectivePrice != nil {
			price = strconvFloat(*o.EffectivePrice)
		}
		return o.Platform + "_" + price + "_" + truncate(normTitle(o.Title), 40)
	}
	// A synthesized search link is not an identity.
	if u := strings.ToLower(strings.TrimSpace(o.ListingURL)); u != "" && !o.SearchLink {
		return u
	}
	return o.Platform + "|" + normTitle(o.Title)
}

func strconvFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
