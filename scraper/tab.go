package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"

	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/selector"
)

// scrollSteps are fractions of the document height visited in order.
var scrollSteps = []float64{0.3, 0.5, 0.7, 0.9}

// rodTab is a Tab backed by a page in its own incognito context.
type rodTab struct {
	page      *rod.Page
	incognito *rod.Browser
	router    *rod.HijackRouter
	cfg       config.ScraperConfig
}

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, t.cfg.NavigationTimeout)
	defer cancel()

	p := t.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to search page failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

func (t *rodTab) WaitReady(ctx context.Context, readySelector string) {
	if readySelector != "" {
		readyCtx, cancel := context.WithTimeout(ctx, t.cfg.ReadyTimeout)
		defer cancel()
		if _, err := t.page.Context(readyCtx).Element(readySelector); err != nil {
			slog.Debug("ready selector not found, proceeding", "selector", readySelector, "error", err)
		}
		return
	}
	sleep(ctx, t.cfg.SettleDelay)
}

func (t *rodTab) DismissOverlays(ctx context.Context) {
	_, _ = t.page.Context(ctx).Eval(dismissOverlaysJS)
}

func (t *rodTab) Scroll(ctx context.Context) {
	p := t.page.Context(ctx)
	for _, f := range scrollSteps {
		if _, err := p.Eval(`(f) => window.scrollTo(0, document.body.scrollHeight * f)`, f); err != nil {
			return
		}
		sleep(ctx, jitter(500*time.Millisecond, 1100*time.Millisecond))
	}
	_, _ = p.Eval(`() => window.scrollTo(0, document.body.scrollHeight * 0.2)`)
}

func (t *rodTab) Content(ctx context.Context) (string, error) {
	html, err := t.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read page HTML")
	}
	return html, nil
}

func (t *rodTab) Root(ctx context.Context) (selector.Node, error) {
	el, err := t.page.Context(ctx).Element("html")
	if err != nil {
		return nil, categorizeError(err, "document element not available")
	}
	return selector.NewRodNode(el), nil
}

func (t *rodTab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
	}
	_ = t.page.Close()
	return t.incognito.Close()
}

// dismissOverlaysJS clicks common close buttons and removes fixed or
// sticky layers with a high z-index (cookie banners, login modals).
const dismissOverlaysJS = `() => {
	const closers = [
		'button[aria-label="Close"]', 'button[aria-label="close"]',
		'[class*="close-button"]', '[class*="closeButton"]', 'span[role="button"]._30XB9F',
		'#wzrk-cancel', '.modal button.close',
	];
	for (const sel of closers) {
		document.querySelectorAll(sel).forEach(el => { try { el.click(); } catch (e) {} });
	}
	for (const el of document.querySelectorAll('*')) {
		const style = window.getComputedStyle(el);
		if (style.position === 'fixed' || style.position === 'sticky') {
			const z = parseInt(style.zIndex, 10);
			if (z >= 900) el.remove();
		}
	}
	const patterns = [
		'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
		'[id*="cookie"]', '[id*="consent"]', '[class*="popup"]', '[id*="popup"]',
		'[class*="login-modal"]',
	];
	for (const sel of patterns) {
		document.querySelectorAll(sel).forEach(el => {
			const pos = window.getComputedStyle(el).position;
			if (pos === 'fixed' || pos === 'sticky' || pos === 'absolute') el.remove();
		});
	}
	document.documentElement.style.overflow = '';
	document.body.style.overflow = '';
}`

// categorizeError wraps raw errors into typed ScrapeErrors so they map
// onto site statuses.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// jitter returns a random duration in [lo, hi].
func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
