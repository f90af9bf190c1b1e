package scraper

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/models"
)

// profile is the identity a session presents for its whole life.
type profile struct {
	userAgent string
	platform  string
	width     int
	height    int
}

var userAgents = []profile{
	{userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36", platform: "Win32"},
	{userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", platform: "Win32"},
	{userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36", platform: "MacIntel"},
	{userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36", platform: "Linux x86_64"},
}

var viewports = [][2]int{{1366, 768}, {1440, 900}, {1536, 864}, {1920, 1080}}

func randomProfile() profile {
	p := userAgents[rand.IntN(len(userAgents))]
	vp := viewports[rand.IntN(len(viewports))]
	p.width, p.height = vp[0], vp[1]
	return p
}

// RodBrowser owns the Chromium process and opens one incognito context
// per domain session. It is safe for concurrent use.
type RodBrowser struct {
	browser    *rod.Browser
	pid        int
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
}

// LaunchBrowser starts Chromium with the stealth flag set and connects to it.
func LaunchBrowser(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*RodBrowser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-infobars"))
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-default-browser-check"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), browserCfg.Locale)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "pid", l.PID())

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &RodBrowser{
		browser:    browser,
		pid:        l.PID(),
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}, nil
}

// PID returns the browser process id.
func (b *RodBrowser) PID() int { return b.pid }

// Open creates an incognito context for domain with a randomly chosen
// user agent and viewport, Indian locale and timezone, stealth patches
// and resource blocking.
func (b *RodBrowser) Open(ctx context.Context, domain string) (Tab, error) {
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to create browser context", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}

	prof := randomProfile()

	// ── 1. Stealth (must precede the first navigation) ─────────────
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "domain", domain, "error", err)
	}

	// ── 2. Identity ─────────────────────────────────────────────────
	_ = proto.NetworkSetUserAgentOverride{
		UserAgent:      prof.userAgent,
		AcceptLanguage: "en-IN,en;q=0.9",
		Platform:       prof.platform,
	}.Call(page)
	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             prof.width,
		Height:            prof.height,
		DeviceScaleFactor: 1,
	})
	_ = proto.EmulationSetTimezoneOverride{TimezoneID: b.browserCfg.Timezone}.Call(page)
	_ = proto.EmulationSetLocaleOverride{Locale: b.browserCfg.Locale}.Call(page)

	// ── 3. Headers ──────────────────────────────────────────────────
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-IN,en;q=0.9",
		"Referer":         "https://www.google.co.in/",
	})}.Call(page)

	// ── 4. Resource blocking ────────────────────────────────────────
	router := setupHijack(page, b.scraperCfg.BlockedResourceTypes, b.scraperCfg.BlockAds)

	slog.Debug("browser context created", "domain", domain, "viewport", prof.width, "platform", prof.platform)
	return &rodTab{
		page:      page,
		incognito: incognito,
		router:    router,
		cfg:       b.scraperCfg,
	}, nil
}

// Close kills the browser process.
func (b *RodBrowser) Close() {
	slog.Info("browser shutting down")
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
