package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/pricecompare/cleaner"
	"github.com/use-agent/pricecompare/engine"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
	"github.com/use-agent/pricecompare/selector"
	"github.com/use-agent/pricecompare/simhash"
)

// minPageText is the visible-text length below which a capture is
// treated as an empty page.
const minPageText = 100

var errEmptyPage = errors.New("empty page")

// BrowserScraper is the generic scraper: it drives a domain session and
// resolves card fields with the selector engine.
type BrowserScraper struct {
	sessions  *SessionPool
	selectors *selector.Engine

	driftDistance int
	keepCardHTML  bool
	sleep         func(context.Context, time.Duration)
	retryPause    [2]time.Duration
}

// BrowserOption configures a BrowserScraper.
type BrowserOption func(*BrowserScraper)

// WithLayoutDrift evicts a domain's cached selectors when the result
// page structure moves more than distance bits from the last capture.
// Zero disables the check.
func WithLayoutDrift(distance int) BrowserOption {
	return func(s *BrowserScraper) { s.driftDistance = distance }
}

// WithCardHTML keeps each card's outer HTML on the listing.
func WithCardHTML(keep bool) BrowserOption {
	return func(s *BrowserScraper) { s.keepCardHTML = keep }
}

// NewBrowserScraper creates the generic scraper.
func NewBrowserScraper(sessions *SessionPool, selectors *selector.Engine, opts ...BrowserOption) *BrowserScraper {
	s := &BrowserScraper{
		sessions:   sessions,
		selectors:  selectors,
		sleep:      sleep,
		retryPause: [2]time.Duration{3 * time.Second, 6 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scrape runs up to two attempts. A bot challenge recycles the domain
// session before the retry; an empty page is retried as well.
func (s *BrowserScraper) Scrape(ctx context.Context, cfg *registry.MarketplaceConfig, query string, limit int) Result {
	res := Result{Status: newStatus(cfg.Key, cfg.Name)}
	log := slog.With("site", cfg.Key)
	searchURL := cfg.SearchURL(query)
	limit = resultLimit(cfg, limit)

	lo, hi := cfg.DelayRange()
	s.sleep(ctx, jitter(lo, hi))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		listings, size, err := s.attempt(ctx, cfg, searchURL, limit)
		res.PageSize = size
		if err == nil {
			res.Listings = listings
			succeed(&res.Status, len(listings))
			log.Info("site scraped", "attempt", attempt, "listings", len(listings))
			return res
		}
		lastErr = err

		retryable := errors.Is(err, engine.ErrChallenge) || errors.Is(err, errEmptyPage)
		if !retryable || attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		log.Warn("retrying site", "attempt", attempt, "error", err)
		s.sleep(ctx, jitter(s.retryPause[0], s.retryPause[1]))
	}

	if errors.Is(lastErr, errEmptyPage) {
		res.Status.Status = models.StatusNoResults
		res.Status.Message = "Empty page from " + cfg.Name
	} else {
		fail(&res.Status, lastErr)
	}
	log.Warn("site scrape failed", "status", res.Status.Status, "error", lastErr)
	return res
}

// attempt performs one pass of the page state machine.
func (s *BrowserScraper) attempt(ctx context.Context, cfg *registry.MarketplaceConfig, searchURL string, limit int) ([]models.RawListing, int, error) {
	domain := cfg.Domain()

	// ── 1. Lease the domain session ──────────────────────────────────
	lease, err := s.sessions.Acquire(ctx, domain)
	if err != nil {
		return nil, 0, err
	}
	healthy := false
	defer func() { lease.Release(healthy) }()

	// ── 2. Navigate, wait, clear overlays ────────────────────────────
	if err := lease.Navigate(ctx, searchURL); err != nil {
		return nil, 0, err
	}
	lease.WaitReady(ctx, cfg.ReadySelector)
	lease.DismissOverlays(ctx)

	// ── 3. Capture ───────────────────────────────────────────────────
	page, err := lease.Content(ctx)
	if err != nil {
		return nil, 0, err
	}
	size := len(page)
	if len(strings.TrimSpace(cleaner.VisibleText(page))) < minPageText {
		return nil, size, errEmptyPage
	}

	// ── 4. Bot challenge ─────────────────────────────────────────────
	if phrase := cleaner.MatchPhrase(page, cfg.BotPhrases); phrase != "" {
		s.sessions.Recycle(domain)
		return nil, size, models.NewScrapeError(models.ErrCodeBotChallenge,
			fmt.Sprintf("%q on %s", phrase, cfg.Name), engine.ErrChallenge)
	}

	// ── 5. Layout drift ──────────────────────────────────────────────
	if s.driftDistance > 0 {
		if s.selectors.Cache().ObserveLayout(domain, simhash.Layout(page), s.driftDistance) {
			slog.Info("result page layout changed, selector cache cleared", "site", cfg.Key)
		}
	}

	// ── 6. Lazy content ──────────────────────────────────────────────
	if cfg.Scroll() {
		lease.Scroll(ctx)
	}

	// ── 7. Container and cards ───────────────────────────────────────
	root, err := lease.Root(ctx)
	if err != nil {
		return nil, size, err
	}
	hint := cfg.Selectors.Container
	container, cards := s.selectors.Container(ctx, root, domain, cfg.Key, hint.Primary, hint.Fallback)
	healthy = true
	if container == "" {
		return nil, size, models.NewScrapeError(models.ErrCodeSelectorMiss,
			"no product container found on "+cfg.Name, nil)
	}
	return s.extractCards(cards, cfg, domain, limit), size, nil
}

// extractCards reads up to limit titled cards.
func (s *BrowserScraper) extractCards(cards []selector.Node, cfg *registry.MarketplaceConfig, domain string, limit int) []models.RawListing {
	sel := cfg.Selectors
	out := make([]models.RawListing, 0, limit)
	for _, card := range cards {
		if len(out) >= limit {
			break
		}
		text := func(field string, h registry.SelectorHint) string {
			return cleanField(s.selectors.Text(card, domain, field, h.Primary, h.Fallback))
		}

		l := models.RawListing{
			Platform:      cfg.Key,
			Title:         text(selector.FieldTitle, sel.Title),
			Price:         text(selector.FieldPrice, sel.Price),
			OriginalPrice: text(selector.FieldOriginalPrice, sel.OriginalPrice),
			Rating:        text(selector.FieldRating, sel.Rating),
			ReviewCount:   text(selector.FieldReviewCount, sel.ReviewCount),
			Delivery:      text(selector.FieldDelivery, sel.Delivery),
			Shipping:      text(selector.FieldShipping, sel.Shipping),
			Seller:        text(selector.FieldSeller, sel.Seller),
			ReturnPolicy:  text(selector.FieldReturnPolicy, sel.ReturnPolicy),
		}
		if l.Title == "" {
			continue
		}
		l.ListingURL = s.selectors.Attr(card, domain, selector.FieldListingURL, "href", sel.ListingURL.Primary, sel.ListingURL.Fallback)
		if l.ListingURL == "" {
			// Some grids make the whole card a link.
			l.ListingURL, _ = card.Attr("href")
		}
		l.ImageURL = s.selectors.Attr(card, domain, selector.FieldImage, "src", sel.Image.Primary, sel.Image.Fallback)
		if s.keepCardHTML {
			l.CardHTML, _ = card.HTML()
		}
		out = append(out, l)
	}
	return out
}
