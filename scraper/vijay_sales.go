package scraper

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecompare/extractor"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

// vijaySalesCards are tried in order; the first matching two or more wins.
var vijaySalesCards = []string{
	"div.product-card__inner",
	"div[class*='product-card__inner']",
	"div[class*='product-card']",
	"li.productcollection__item",
	"div.productcollection__item",
	"div[class*='productCard']",
	"div[data-product]",
}

var rupeeRe = regexp.MustCompile(`₹\s*[\d,]+(?:\.\d{2})?`)

// parseVijaySales reads Vijay Sales listing cards.
func parseVijaySales(doc *goquery.Document, cfg *registry.MarketplaceConfig, limit int) []models.RawListing {
	var cards *goquery.Selection
	for _, sel := range vijaySalesCards {
		if found := doc.Find(sel); found.Length() >= 2 {
			cards = found
			break
		}
	}
	if cards == nil {
		cards = priceLeafDivs(doc)
	}

	var out []models.RawListing
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		if l, ok := vijaySalesCard(card, cfg.BaseURL); ok {
			l.Platform = cfg.Key
			out = append(out, l)
		}
		return true
	})
	return out
}

// priceLeafDivs is the last resort: short classed divs showing a rupee
// price whose children do not already qualify.
func priceLeafDivs(doc *goquery.Document) *goquery.Selection {
	qualifies := func(s *goquery.Selection) bool {
		t := s.Text()
		return len(t) < 500 && rupeeRe.MatchString(t)
	}
	return doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if !qualifies(s) {
			return false
		}
		inner := s.Find("div[class]").FilterFunction(func(_ int, c *goquery.Selection) bool { return qualifies(c) })
		return inner.Length() == 0
	})
}

func vijaySalesCard(card *goquery.Selection, base string) (models.RawListing, bool) {
	title := textOf(first(card,
		"div.product-name", "div[class*='product-name']", "p.product-name",
		"div[class*='productName']", "p[class*='productName']", "a[class*='productName']",
		"h3[class*='title'] a"))
	if title == "" {
		title = cleanField(attrOf(first(card, "a[title]"), "title"))
	}
	if len([]rune(title)) < 5 {
		return models.RawListing{}, false
	}

	price := textOf(first(card,
		".discountedPrice", "div[class*='discountedPrice']", "span[class*='discountedPrice']",
		"div[class*='selling-price']", "p[class*='selling-price']", "span[class*='selling-price']",
		"span[class*='price']"))
	if _, ok := extractor.ParsePrice(price); !ok {
		price = rupeeRe.FindString(cleanField(card.Text()))
	}

	var rating string
	if r, ok := extractor.ParseRating(textOf(first(card,
		".stars", ".product__title--reviews-star", "div[class*='rating'] span",
		"span[class*='rating']", "div[class*='star']"))); ok {
		rating = formatFloat(r)
	}

	link := first(card, "a.product-card__link", "a[href*='/product']", "a[href*='/buy']", "a[href]")
	mrp := first(card,
		".originalPrice", "span[class*='originalPrice']", "span[class*='mrp']",
		"p[class*='mrp']", "div[class*='mrp']", "del", "s")
	reviews := first(card, "span[class*='count']", "span[class*='review']")

	return models.RawListing{
		ListingURL:    resolve(base, attrOf(link, "href")),
		Title:         title,
		Price:         price,
		OriginalPrice: textOf(mrp),
		Rating:        rating,
		ReviewCount:   countRe.FindString(textOf(reviews)),
		Seller:        "Vijay Sales",
		ImageURL:      attrOf(first(card, "img[src]"), "src"),
	}, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
