// Package orchestrator fans a search out across marketplaces under a
// global concurrency cap and gathers listings and one status per key.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/use-agent/pricecompare/config"
	"github.com/use-agent/pricecompare/metrics"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
	"github.com/use-agent/pricecompare/scraper"
)

// Sites resolves marketplace keys.
type Sites interface {
	Get(key string) (*registry.MarketplaceConfig, bool)
}

// Result is the merged outcome of one fan-out.
type Result struct {
	Listings []models.RawListing
	// Statuses holds exactly one entry per requested key, in key order.
	Statuses []models.SiteStatus
	// Pages maps site key to the captured result page size.
	Pages map[string]int
}

// Orchestrator runs site scrapes concurrently.
type Orchestrator struct {
	sites   Sites
	scraper scraper.SiteScraper
	cfg     config.OrchestratorConfig
	metrics *metrics.Metrics

	sem chan struct{}

	mu      sync.Mutex
	domains map[string]*sync.Mutex
}

// New creates an Orchestrator. Zero config values fall back to the
// defaults of config.Load.
func New(sites Sites, s scraper.SiteScraper, cfg config.OrchestratorConfig, m *metrics.Metrics) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SiteTimeout <= 0 {
		cfg.SiteTimeout = 45 * time.Second
	}
	if cfg.MaxPerSite <= 0 {
		cfg.MaxPerSite = 5
	}
	return &Orchestrator{
		sites:   sites,
		scraper: s,
		cfg:     cfg,
		metrics: m,
		sem:     make(chan struct{}, cfg.Concurrency),
		domains: make(map[string]*sync.Mutex),
	}
}

// Progress is called once per key as its status becomes final. Calls
// are serialized.
type Progress func(models.SiteStatus)

// Run scrapes query on every key. maxPerSite <= 0 uses the configured cap.
// It never fails: unknown, disabled, crashed and timed-out sites are
// reported through their status.
func (o *Orchestrator) Run(ctx context.Context, query string, keys []string, maxPerSite int) Result {
	return o.RunWithProgress(ctx, query, keys, maxPerSite, nil)
}

// RunWithProgress is Run with a per-site completion callback.
func (o *Orchestrator) RunWithProgress(ctx context.Context, query string, keys []string, maxPerSite int, progress Progress) Result {
	if maxPerSite <= 0 {
		maxPerSite = o.cfg.MaxPerSite
	}

	var progressMu sync.Mutex
	report := func(st models.SiteStatus) {
		if progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		progress(st)
	}

	results := make([]scraper.Result, len(keys))
	var wg sync.WaitGroup

	for i, key := range keys {
		cfg, ok := o.sites.Get(key)
		switch {
		case !ok:
			results[i] = errorResult(key, key, fmt.Sprintf("Marketplace key '%s' not found in registry", key))
			report(results[i].Status)
			continue
		case !cfg.IsEnabled():
			results[i] = errorResult(key, cfg.Name, fmt.Sprintf("%s is disabled", cfg.Name))
			report(results[i].Status)
			continue
		}

		wg.Add(1)
		go func(i int, cfg *registry.MarketplaceConfig) {
			defer wg.Done()
			results[i] = o.task(ctx, cfg, query, maxPerSite)
			report(results[i].Status)
		}(i, cfg)
	}
	wg.Wait()

	out := Result{Pages: make(map[string]int, len(keys))}
	for i, r := range results {
		st := r.Status
		if st.Key == "" {
			st.Key = keys[i]
		}
		out.Statuses = append(out.Statuses, st)
		out.Listings = append(out.Listings, r.Listings...)
		if r.PageSize > 0 {
			out.Pages[st.Key] = r.PageSize
		}
		o.metrics.SiteStatus(st.Key, string(st.Status))
	}
	slog.Info("orchestrator: run complete", "query", query, "sites", len(keys), "listings", len(out.Listings))
	return out
}

// task runs one site scrape inside the semaphore.
func (o *Orchestrator) task(ctx context.Context, cfg *registry.MarketplaceConfig, query string, limit int) (res scraper.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator: site task panic", "site", cfg.Key, "panic", r, "stack", string(debug.Stack()))
			res = errorResult(cfg.Key, cfg.Name, scraper.Truncate(fmt.Sprintf("Error: panic: %v", r), 100))
		}
	}()

	// ── 1. Global semaphore ──
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return cancelled(cfg)
	}
	defer func() { <-o.sem }()

	// ── 2. Stagger ──
	if o.cfg.Stagger > 0 {
		t := time.NewTimer(o.cfg.Stagger)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return cancelled(cfg)
		}
	}

	// ── 3. Domain exclusivity ──
	lock := o.domainLock(cfg.Domain())
	lock.Lock()
	defer lock.Unlock()

	// ── 4. Scrape under the per-site deadline ──
	siteCtx, cancel := context.WithTimeout(ctx, o.cfg.SiteTimeout)
	defer cancel()

	start := time.Now()
	res = o.scraper.Scrape(siteCtx, cfg, query, limit)
	o.metrics.ObserveScrape(cfg.Key, time.Since(start))

	if res.Status.Status == models.StatusPending || res.Status.Status == "" {
		if siteCtx.Err() != nil {
			res.Status = models.SiteStatus{Key: cfg.Key, Name: cfg.Name, Status: models.StatusTimeout, Message: "Timed out loading " + cfg.Name}
		} else {
			res.Status = models.SiteStatus{Key: cfg.Key, Name: cfg.Name, Status: models.StatusError, Message: "Error: scraper returned no status"}
		}
		res.Listings = nil
	}
	slog.Debug("orchestrator: site done", "site", cfg.Key, "status", res.Status.Status,
		"listings", len(res.Listings), "elapsed", time.Since(start))
	return res
}

// domainLock returns the mutex serializing scrapes of one domain.
func (o *Orchestrator) domainLock(domain string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.domains[domain]
	if !ok {
		l = &sync.Mutex{}
		o.domains[domain] = l
	}
	return l
}

func errorResult(key, name, msg string) scraper.Result {
	return scraper.Result{Status: models.SiteStatus{Key: key, Name: name, Status: models.StatusError, Message: msg}}
}

func cancelled(cfg *registry.MarketplaceConfig) scraper.Result {
	return scraper.Result{Status: models.SiteStatus{Key: cfg.Key, Name: cfg.Name, Status: models.StatusTimeout, Message: "Cancelled before " + cfg.Name + " was scraped"}}
}
