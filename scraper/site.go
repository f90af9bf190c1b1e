// Package scraper turns one marketplace search into raw listings and a
// site status. The generic path drives a stealth browser session and the
// selector engine; marketplaces with a specialized parser are fetched
// through the engine dispatcher and parsed with fixed selectors.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

// maxAttempts bounds tries per site, challenge retries included.
const maxAttempts = 2

// Result is the outcome of scraping one marketplace.
type Result struct {
	Listings []models.RawListing
	Status   models.SiteStatus
	// PageSize is the length of the last captured result page.
	PageSize int
}

// SiteScraper scrapes one marketplace. Implementations never return an
// error; every failure is reported in Result.Status.
type SiteScraper interface {
	Scrape(ctx context.Context, cfg *registry.MarketplaceConfig, query string, limit int) Result
}

// Scraper routes each marketplace to its specialized parser or to the
// generic browser scraper.
type Scraper struct {
	browser SiteScraper
	parsers SiteScraper
}

// New creates a Scraper. Either argument may be nil, in which case the
// marketplaces that need it report an error.
func New(browser, parsers SiteScraper) *Scraper {
	return &Scraper{browser: browser, parsers: parsers}
}

// Scrape implements SiteScraper. Panics are recovered into an error status.
func (s *Scraper) Scrape(ctx context.Context, cfg *registry.MarketplaceConfig, query string, limit int) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scraper panic", "site", cfg.Key, "panic", r, "stack", string(debug.Stack()))
			res = Result{Status: newStatus(cfg.Key, cfg.Name)}
			fail(&res.Status, fmt.Errorf("panic: %v", r))
		}
	}()

	target := s.browser
	if cfg.Parser != registry.ParserGeneric {
		target = s.parsers
	}
	if target == nil {
		res = Result{Status: newStatus(cfg.Key, cfg.Name)}
		fail(&res.Status, fmt.Errorf("no scraper available for parser %q", cfg.Parser))
		return res
	}
	return target.Scrape(ctx, cfg, query, limit)
}

// resultLimit picks the card cap for a scrape.
func resultLimit(cfg *registry.MarketplaceConfig, limit int) int {
	if limit <= 0 || (cfg.MaxResults > 0 && limit > cfg.MaxResults) {
		return cfg.MaxResults
	}
	return limit
}

var (
	spaceRe = regexp.MustCompile(`\s+`)

	// nullValues are placeholder texts that mean "no value".
	nullValues = map[string]struct{}{
		"none": {}, "null": {}, "n/a": {}, "na": {}, "nil": {}, "-": {},
		"not available": {}, "not specified": {}, "unknown": {}, "undefined": {},
	}
)

// cleanField collapses whitespace and blanks placeholder values.
func cleanField(s string) string {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if _, ok := nullValues[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}
