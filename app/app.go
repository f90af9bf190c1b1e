// Package app builds the component graph shared by the server and the CLI.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/pricecompare/cache"
	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/engine"
	"github.com/use-agent/pricecompare/extractor"
	"github.com/use-agent/pricecompare/llm"
	"github.com/use-agent/pricecompare/matcher"
	"github.com/use-agent/pricecompare/metrics"
	"github.com/use-agent/pricecompare/orchestrator"
	"github.com/use-agent/pricecompare/pipeline"
	"github.com/use-agent/pricecompare/planner"
	"github.com/use-agent/pricecompare/ranker"
	"github.com/use-agent/pricecompare/registry"
	"github.com/use-agent/pricecompare/scraper"
	"github.com/use-agent/pricecompare/selector"
	"github.com/use-agent/pricecompare/service"
	"github.com/use-agent/pricecompare/webhook"
)

// nearTitleDistance is the simhash distance for strict-mode title dedup.
const nearTitleDistance = 3

// App holds the long-lived components.
type App struct {
	Config    *config.Config
	Metrics   *metrics.Metrics
	Registry  *registry.Registry
	LLM       *llm.Client
	Selectors *selector.Engine
	Browser   *scraper.RodBrowser
	Sessions  *scraper.SessionPool
	Pipeline  *pipeline.Pipeline
	Cache     *cache.Cache
	Service   *service.Service
}

// New launches the browser and wires every stage. Call Close when done.
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	// ── 1. Metrics and marketplaces ──
	a.Metrics = metrics.New()
	reg, err := registry.New(cfg.Registry.Dir)
	if err != nil {
		return nil, fmt.Errorf("load marketplaces: %w", err)
	}
	a.Registry = reg
	slog.Info("marketplaces loaded", "dir", cfg.Registry.Dir, "count", reg.Len())

	// ── 2. LLM collaborators ──
	a.LLM = llm.NewClient(cfg.LLM, nil, a.Metrics)
	if !a.LLM.Enabled() {
		slog.Warn("LLM collaborators disabled, using deterministic fallbacks")
	}

	// ── 3. Selector engine ──
	selOpts := []selector.Option{selector.WithRecorder(a.Metrics)}
	if a.LLM.Enabled() {
		selOpts = append(selOpts, selector.WithDiscoverer(a.LLM))
	}
	a.Selectors = selector.NewEngine(selector.NewCache(), selOpts...)

	// ── 4. Browser sessions ──
	a.Browser, err = scraper.LaunchBrowser(cfg.Browser, cfg.Scraper)
	if err != nil {
		return nil, err
	}
	a.Sessions = scraper.NewSessionPool(a.Browser, cfg.MaxSessions())

	// ── 5. Fetch dispatcher for specialized parsers ──
	// The browser tier reuses the session pool so one domain never runs
	// two browser contexts.
	engines := []engine.Engine{
		engine.NewHTTPEngine(cfg.Engine.HTTPTimeout),
		engine.NewBrowserEngine(a.Sessions.Fetch),
	}
	dispatcher := engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, engine.NewDomainMemory(cfg.Engine.DomainMemoryTTL))
	slog.Info("fetch dispatcher ready", "engines", len(engines), "delays", cfg.Engine.EscalationDelays)

	// ── 6. Scrapers and fan-out ──
	browserScraper := scraper.NewBrowserScraper(a.Sessions, a.Selectors,
		scraper.WithLayoutDrift(cfg.Pipeline.LayoutDriftDistance),
		scraper.WithCardHTML(cfg.Scraper.EnrichCards && a.LLM.Enabled()),
	)
	parserScraper := scraper.NewParserScraper(dispatcher, cfg.Scraper.NavigationTimeout+cfg.Scraper.ReadyTimeout)
	orch := orchestrator.New(reg, scraper.New(browserScraper, parserScraper), cfg.Orchestrator, a.Metrics)

	// ── 7. Pipeline ──
	var (
		parser planner.QueryParser
		scorer matcher.MatchScorer
	)
	deps := pipeline.Deps{
		Scrapers:  orch,
		Sites:     reg,
		Ranker:    ranker.New(ranker.Options{MinComposite: cfg.Ranker.MinComposite, MaxPerSite: cfg.Ranker.MaxPerSite, Weights: cfg.Ranker.Weights}, reg),
		Selectors: a.Selectors.Cache(),
		Metrics:   a.Metrics,
	}
	// Nil collaborators select the deterministic fallbacks.
	if a.LLM.Enabled() {
		parser, scorer = a.LLM, a.LLM
		deps.Explainer = a.LLM
		if cfg.Scraper.EnrichCards {
			deps.Enricher = a.LLM
		}
	}
	deps.Planner = planner.New(parser, reg)
	deps.Matcher = matcher.New(matcher.Options{
		MinScore:      cfg.Matcher.MinScore,
		UncertainLow:  cfg.Matcher.UncertainLow,
		UncertainHigh: cfg.Matcher.UncertainHigh,
	}, scorer, a.Metrics)
	a.Pipeline = pipeline.New(deps, pipeline.Options{
		MaxRetries: cfg.Pipeline.MaxRetries,
		Extract: extractor.Options{
			DropNullPrice:     cfg.Pipeline.DropNullPrice,
			Strict:            cfg.Pipeline.StrictDedup,
			NearTitleDistance: nearTitleDistance,
		},
	})

	// ── 8. Cache, webhooks, service ──
	a.Cache = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL, a.Metrics)
	a.Service = service.New(a.Pipeline, a.Cache, webhook.New(cfg.Webhook.Secret, cfg.Webhook.Timeout, nil))
	return a, nil
}

// Close releases browser sessions and kills Chrome.
func (a *App) Close() {
	start := time.Now()
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.Browser != nil {
		a.Browser.Close()
	}
	slog.Info("browser closed", "elapsed", time.Since(start))
}
