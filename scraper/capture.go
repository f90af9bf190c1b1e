package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/use-agent/pricecompare/cleaner"
	"github.com/use-agent/pricecompare/engine"
)

// Fetch captures a page through the domain's browser session. It has the
// engine.BrowserFetchFunc signature so the dispatcher's browser tier
// shares sessions with the generic scraper.
func (p *SessionPool) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	lease, err := p.Acquire(ctx, hostDomain(req.URL))
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() { lease.Release(ok) }()

	if err := lease.Navigate(ctx, req.URL); err != nil {
		return nil, err
	}
	lease.WaitReady(ctx, req.ReadySelector)
	lease.DismissOverlays(ctx)
	if req.Scroll {
		lease.Scroll(ctx)
	}
	html, err := lease.Content(ctx)
	if err != nil {
		return nil, err
	}
	ok = engine.CheckChallenge(html, req.BotPhrases) == nil

	return &engine.FetchResult{
		HTML:       html,
		Title:      cleaner.Title(html),
		StatusCode: 200,
		FinalURL:   req.URL,
	}, nil
}

// hostDomain matches registry.MarketplaceConfig.Domain for a URL.
func hostDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
