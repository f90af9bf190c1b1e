package extractor

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/use-agent/pricecompare/cleaner"
	"github.com/use-agent/pricecompare/models"
)

// CardEnricher reads fields from a card's text when selectors failed.
type CardEnricher interface {
	ExtractCard(ctx context.Context, cardText, siteKey string) (*models.CardFields, error)
}

// enrichWorkers bounds concurrent enrichment calls; the collaborator has
// its own rate limiter.
const enrichWorkers = 3

// Enrich fills in listings whose price did not parse, using the card HTML
// kept by the scraper. Fields already present are not overwritten, and
// cards the collaborator calls accessories are dropped. Failures leave
// the listing as it was. It returns the listings to keep and how many
// were enriched.
func Enrich(ctx context.Context, listings []models.RawListing, enricher CardEnricher, lookup Lookup) ([]models.RawListing, int) {
	if enricher == nil {
		return listings, 0
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enriched int
		drop     = make(map[int]bool)
		sem      = make(chan struct{}, enrichWorkers)
	)
	for i := range listings {
		l := &listings[i]
		if l.CardHTML == "" {
			continue
		}
		if _, ok := ParsePrice(l.Price); ok {
			continue
		}
		var base string
		if lookup != nil {
			if cfg, ok := lookup.Get(l.Platform); ok {
				base = cfg.BaseURL
			}
		}
		text := cleaner.CardText(l.CardHTML, base)
		if len(text) < 5 {
			continue
		}

		wg.Add(1)
		go func(i int, l *models.RawListing, text string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fields, err := enricher.ExtractCard(ctx, text, l.Platform)
			if err != nil || fields == nil {
				slog.Debug("extractor: card enrichment unavailable", "site", l.Platform, "error", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if fields.IsAccessory {
				drop[i] = true
				return
			}
			applyFields(l, fields)
			enriched++
		}(i, l, text)
	}
	wg.Wait()

	if len(drop) == 0 {
		return listings, enriched
	}
	out := make([]models.RawListing, 0, len(listings)-len(drop))
	for i, l := range listings {
		if !drop[i] {
			out = append(out, l)
		}
	}
	return out, enriched
}

func applyFields(l *models.RawListing, f *models.CardFields) {
	if l.Title == "" {
		l.Title = f.Title
	}
	if f.Price != nil {
		l.Price = formatRupees(*f.Price)
	}
	if l.OriginalPrice == "" && f.OriginalPrice != nil {
		l.OriginalPrice = formatRupees(*f.OriginalPrice)
	}
	if l.Delivery == "" && f.DeliveryDaysMax != nil {
		l.Delivery = "in " + strconv.Itoa(*f.DeliveryDaysMax) + " days"
	}
	if l.Rating == "" && f.Rating != nil {
		l.Rating = strconv.FormatFloat(*f.Rating, 'f', -1, 64)
	}
	if l.ReviewCount == "" && f.ReviewCount != nil {
		l.ReviewCount = strconv.Itoa(*f.ReviewCount)
	}
}

func formatRupees(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}
