package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecompare/engine"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

// Fetcher retrieves a page, typically an *engine.Dispatcher.
type Fetcher interface {
	Dispatch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// ParseFunc extracts up to limit listings from a result page.
type ParseFunc func(doc *goquery.Document, cfg *registry.MarketplaceConfig, limit int) []models.RawListing

// parsers holds the marketplaces with a fixed-selector parser.
var parsers = map[string]ParseFunc{
	registry.ParserAmazon:    parseAmazon,
	registry.ParserVijaySale: parseVijaySales,
}

// ParserScraper fetches result pages through a Fetcher and parses them
// with a marketplace-specific ParseFunc. No selector engine is involved.
type ParserScraper struct {
	fetcher    Fetcher
	timeout    time.Duration
	sleep      func(context.Context, time.Duration)
	retryPause [2]time.Duration
}

// NewParserScraper creates a ParserScraper; timeout bounds each fetch.
func NewParserScraper(fetcher Fetcher, timeout time.Duration) *ParserScraper {
	return &ParserScraper{
		fetcher:    fetcher,
		timeout:    timeout,
		sleep:      sleep,
		retryPause: [2]time.Duration{2 * time.Second, 4 * time.Second},
	}
}

// Scrape implements SiteScraper. A challenge or an empty parse is retried once.
func (s *ParserScraper) Scrape(ctx context.Context, cfg *registry.MarketplaceConfig, query string, limit int) Result {
	res := Result{Status: newStatus(cfg.Key, cfg.Name)}
	log := slog.With("site", cfg.Key, "parser", cfg.Parser)

	parse, ok := parsers[cfg.Parser]
	if !ok {
		fail(&res.Status, errors.New("unknown parser "+cfg.Parser))
		return res
	}
	limit = resultLimit(cfg, limit)
	req := &engine.FetchRequest{
		URL:           cfg.SearchURL(query),
		Timeout:       s.timeout,
		BotPhrases:    cfg.BotPhrases,
		ReadySelector: cfg.ReadySelector,
		Scroll:        cfg.Scroll(),
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(ctx, jitter(s.retryPause[0], s.retryPause[1]))
		}

		fetched, err := s.fetcher.Dispatch(ctx, req)
		if err != nil {
			lastErr = err
			log.Warn("fetch failed", "attempt", attempt, "error", err)
			if errors.Is(err, engine.ErrChallenge) && ctx.Err() == nil {
				continue
			}
			break
		}
		res.PageSize = len(fetched.HTML)

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fetched.HTML))
		if err != nil {
			lastErr = err
			break
		}
		listings := parse(doc, cfg, limit)
		log.Info("page parsed", "attempt", attempt, "engine", fetched.EngineName, "listings", len(listings))
		if len(listings) > 0 {
			res.Listings = listings
			succeed(&res.Status, len(listings))
			return res
		}
		lastErr = nil
	}

	if lastErr != nil {
		fail(&res.Status, lastErr)
	} else {
		succeed(&res.Status, 0)
	}
	return res
}

// ── goquery helpers shared by the parsers ──────────────────────────────

// first returns the first non-empty match among sels.
func first(s *goquery.Selection, sels ...string) *goquery.Selection {
	for _, sel := range sels {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

// textOf returns the cleaned text of s, or "" for nil.
func textOf(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	return cleanField(s.Text())
}

// resolve makes href absolute against base.
func resolve(base, href string) string {
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
