package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecompare/extractor"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

var (
	countRe = regexp.MustCompile(`[\d,]+`)

	// slugNoise are URL path words that are not part of a product name.
	slugNoise = map[string]struct{}{
		"dp": {}, "ref": {}, "sr": {}, "qid": {}, "keywords": {}, "crid": {},
		"sprefix": {}, "encoding": {}, "psc": {}, "tag": {}, "linkcode": {},
		"th": {}, "smid": {}, "spla": {}, "www": {}, "amazon": {}, "in": {},
	}
)

// parseAmazon reads Amazon search-result cards. Sponsored cards and cards
// without a usable title are skipped.
func parseAmazon(doc *goquery.Document, cfg *registry.MarketplaceConfig, limit int) []models.RawListing {
	cards := doc.Find("[data-component-type='s-search-result']")
	if cards.Length() == 0 {
		cards = doc.Find("div[data-asin]:not([data-asin=''])")
	}

	var out []models.RawListing
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if l, ok := amazonCard(card, cfg.BaseURL); ok {
			l.Platform = cfg.Key
			out = append(out, l)
		}
		return true
	})
	return out
}

func amazonCard(card *goquery.Selection, base string) (models.RawListing, bool) {
	if card.Find(".puis-sponsored-label-text, .s-sponsored-label-text").Length() > 0 {
		return models.RawListing{}, false
	}

	title := textOf(first(card, "h2 .a-text-normal", "h2 a span", "h2 a", "h2"))

	var listingURL string
	if a := first(card, "h2 a[href]", "a.a-link-normal[href*='/dp/']", "a[href*='/dp/']"); a != nil {
		href, _ := a.Attr("href")
		if i := strings.Index(href, "/ref="); i >= 0 {
			href = href[:i]
		}
		listingURL = resolve(base, href)
	}
	if title == "" && listingURL != "" {
		title = titleFromSlug(listingURL)
	}
	if len([]rune(title)) < 5 {
		return models.RawListing{}, false
	}

	price := textOf(first(card, ".a-price .a-offscreen", ".a-price-whole"))
	if _, ok := extractor.ParsePrice(price); !ok {
		if whole := card.Find(".a-price-whole").First(); whole.Length() > 0 {
			frac := textOf(card.Find(".a-price-fraction").First())
			if frac == "" {
				frac = "00"
			}
			price = "₹" + strings.TrimRight(textOf(whole), ".") + "." + frac
		}
	}

	var rating string
	if el := first(card, ".a-icon-star-small .a-icon-alt", "[aria-label*='out of 5 stars']", "i.a-icon-star-small"); el != nil {
		raw, ok := el.Attr("aria-label")
		if !ok || raw == "" {
			raw = textOf(el)
		}
		if r, ok := extractor.ParseRating(raw); ok {
			rating = formatFloat(r)
		}
	}

	var reviews string
	if el := first(card, "[aria-label*='ratings']", ".a-size-base.s-underline-text", "span.a-size-base"); el != nil {
		label, _ := el.Attr("aria-label")
		if label == "" {
			label = textOf(el)
		}
		reviews = countRe.FindString(strings.ReplaceAll(label, " ", ""))
	}

	prime := card.Find("i.a-icon-prime, [aria-label*='Prime']").Length() > 0
	return models.RawListing{
		ListingURL:    listingURL,
		Title:         title,
		Price:         price,
		OriginalPrice: textOf(first(card, ".a-text-price .a-offscreen", ".a-text-price span")),
		Rating:        rating,
		ReviewCount:   reviews,
		Delivery:      amazonDelivery(card, prime),
		Shipping:      amazonShipping(price, prime),
		Seller:        "Amazon.in",
		ImageURL:      attrOf(first(card, "img.s-image"), "src"),
	}, true
}

func amazonDelivery(card *goquery.Selection, prime bool) string {
	for _, sel := range []string{
		"[data-cy='delivery-recipe-content'] .a-text-bold",
		".a-color-base.a-text-bold",
		"span[data-component-type='s-delivery-badge']",
		"[aria-label*='delivery']",
	} {
		if t := textOf(card.Find(sel).First()); len(t) > 2 {
			return t
		}
	}
	if prime {
		return "Prime delivery in 2 days"
	}
	return "Delivery in 5 days (estimated)"
}

func amazonShipping(price string, prime bool) string {
	if prime {
		return "Free (Prime)"
	}
	if v, ok := extractor.ParsePrice(price); ok && v >= 499 {
		return "Free delivery"
	}
	return ""
}

// titleFromSlug rebuilds a product name from an Amazon /name-words/dp/ASIN path.
func titleFromSlug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	slug, err := url.PathUnescape(parts[0])
	if err != nil {
		return ""
	}
	var words []string
	for _, w := range strings.Fields(strings.ReplaceAll(slug, "-", " ")) {
		if _, noise := slugNoise[strings.ToLower(w)]; noise || len(w) < 2 {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

func attrOf(s *goquery.Selection, name string) string {
	if s == nil {
		return ""
	}
	v, _ := s.Attr(name)
	return v
}
