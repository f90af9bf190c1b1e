// Package pipeline runs one comparison as a small state machine:
//
//	planning → scraping → extracting → matching → ranking → explaining → done
//
// An empty match sends the run back to planning with a relaxed target
// until the retry budget is spent, after which it goes straight to
// explaining with the no-match message.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/pricecompare/extractor"
	"github.com/use-agent/pricecompare/matcher"
	"github.com/use-agent/pricecompare/metrics"
	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/orchestrator"
	"github.com/use-agent/pricecompare/planner"
	"github.com/use-agent/pricecompare/ranker"
)

// Stage is a state of the comparison state machine.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageScraping   Stage = "scraping"
	StageExtracting Stage = "extracting"
	StageMatching   Stage = "matching"
	StageRanking    Stage = "ranking"
	StageExplaining Stage = "explaining"
	StageDone       Stage = "done"
)

// Planner parses the query and selects marketplaces.
type Planner interface {
	Plan(ctx context.Context, query string, allowed []string) (planner.Plan, error)
}

// Scrapers fans a search out across marketplaces.
type Scrapers interface {
	RunWithProgress(ctx context.Context, query string, keys []string, maxPerSite int, progress orchestrator.Progress) orchestrator.Result
}

// Explainer writes the recommendation text.
type Explainer interface {
	Explain(ctx context.Context, offers []*models.NormalizedOffer, mode models.RankingMode, query string) (string, error)
}

// SelectorSnapshot exposes the learned selector cache for debug runs.
type SelectorSnapshot interface {
	Snapshot() map[string]string
}

// Deps are the stage implementations. Enricher, Explainer, Selectors and
// Metrics may be nil.
type Deps struct {
	Planner   Planner
	Scrapers  Scrapers
	Sites     extractor.Lookup
	Enricher  extractor.CardEnricher
	Matcher   *matcher.Matcher
	Ranker    *ranker.Ranker
	Explainer Explainer
	Selectors SelectorSnapshot
	Metrics   *metrics.Metrics
}

// Options controls retries and extraction policy.
type Options struct {
	// MaxRetries is the number of matcher passes allowed before giving up.
	MaxRetries int
	Extract    extractor.Options
}

// Pipeline runs comparisons. It is safe for concurrent use; each run
// keeps its own state.
type Pipeline struct {
	deps Deps
	opts Options
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 2
	}
	return &Pipeline{deps: deps, opts: opts}
}

// RunOption customizes a single run.
type RunOption func(*run)

// WithObserver streams progress events of the run to obs.
func WithObserver(obs Observer) RunOption {
	return func(r *run) { r.observer = obs }
}

// Merge is the list reducer for accumulated run state: reset discards
// existing, otherwise incoming is appended.
func Merge[T any](existing, incoming []T, reset bool) []T {
	if reset {
		existing = nil
	}
	if len(incoming) == 0 {
		return existing
	}
	return append(existing, incoming...)
}

// run is the mutable state of one comparison.
type run struct {
	id       string
	req      models.CompareRequest
	mode     models.RankingMode
	log      *slog.Logger
	observer Observer
	start    time.Time

	base     models.TargetProduct
	target   models.TargetProduct
	sites    []string
	attempts int
	failed   bool

	raw        []models.RawListing
	statuses   []models.SiteStatus
	pages      map[string]int
	offers     []*models.NormalizedOffer
	before     []*models.NormalizedOffer
	nullPrice  int
	matched    []*models.NormalizedOffer
	rejections []models.Rejection
	ranked     []*models.NormalizedOffer
	explain    string
	errors     []string
}

func (r *run) emit(typ string, data any) {
	if r.observer != nil {
		r.observer(Event{Type: typ, Data: data})
	}
}

// Run executes a comparison and returns the public response.
func (p *Pipeline) Run(ctx context.Context, req models.CompareRequest, opts ...RunOption) *models.CompareResponse {
	r := p.execute(ctx, req, opts)
	resp := r.response()
	r.emit(EventFinalResult, resp)
	return resp
}

// RunDebug executes a comparison and returns every intermediate stage.
func (p *Pipeline) RunDebug(ctx context.Context, req models.CompareRequest, opts ...RunOption) *models.DebugResponse {
	r := p.execute(ctx, req, opts)
	resp := &models.DebugResponse{
		CompareResponse: *r.response(),
		RawListings:     r.raw,
		BeforeMatch:     r.before,
		Matched:         r.matched,
		Rejections:      r.rejections,
		PageSizes:       r.pages,
	}
	if p.deps.Selectors != nil {
		resp.SelectorSnapshot = p.deps.Selectors.Snapshot()
	}
	r.emit(EventFinalResult, resp.CompareResponse)
	return resp
}

func (p *Pipeline) execute(ctx context.Context, req models.CompareRequest, opts []RunOption) *run {
	req.Defaults()
	r := &run{
		id:    uuid.NewString(),
		req:   req,
		mode:  models.ParseMode(req.Mode),
		start: time.Now(),
		pages: map[string]int{},
	}
	for _, o := range opts {
		o(r)
	}
	r.log = slog.With("run_id", r.id)
	r.log.Info("pipeline: run started", "query", req.Query, "mode", r.mode)

	stage := StagePlanning
	for stage != StageDone {
		if err := ctx.Err(); err != nil && stage != StageExplaining {
			r.errors = append(r.errors, "cancelled: "+err.Error())
			r.emit(EventError, ErrorData{Message: err.Error()})
			stage = StageExplaining
		}
		r.log.Debug("pipeline: stage", "stage", stage, "attempt", r.attempts)
		switch stage {
		case StagePlanning:
			stage = p.plan(ctx, r)
		case StageScraping:
			stage = p.scrape(ctx, r)
		case StageExtracting:
			stage = p.extract(ctx, r)
		case StageMatching:
			stage = p.match(ctx, r)
		case StageRanking:
			stage = p.rank(r)
		case StageExplaining:
			stage = p.explainStage(ctx, r)
		default:
			stage = StageDone
		}
	}

	outcome := "ok"
	switch {
	case r.failed:
		outcome = "failed"
	case len(r.ranked) == 0:
		outcome = "empty"
	}
	p.deps.Metrics.PipelineRun(outcome)
	r.log.Info("pipeline: run finished", "outcome", outcome, "attempts", r.attempts,
		"ranked", len(r.ranked), "elapsed", time.Since(r.start))
	return r
}

// ── 1. Planning ──
func (p *Pipeline) plan(ctx context.Context, r *run) Stage {
	if r.attempts == 0 {
		plan, err := p.deps.Planner.Plan(ctx, r.req.Query, r.req.AllowedMarketplaces)
		if err != nil {
			r.failed = true
			r.errors = append(r.errors, err.Error())
			r.emit(EventError, ErrorData{Message: err.Error()})
			return StageExplaining
		}
		r.base, r.target, r.sites = plan.Target, plan.Target, plan.Sites
	} else {
		r.target = r.base.Relax(r.attempts)
		r.log.Info("pipeline: retrying with relaxed target", "attempt", r.attempts,
			"model", r.target.Model, "search", r.target.SearchQuery)
	}

	// Listings and statuses from an earlier attempt are discarded.
	reset := r.attempts > 0
	r.raw = Merge(r.raw, nil, reset)
	r.statuses = Merge(r.statuses, nil, reset)
	if reset {
		r.pages = map[string]int{}
	}

	if len(r.sites) == 0 {
		r.errors = append(r.errors, "no marketplaces enabled")
		return StageExplaining
	}
	return StageScraping
}

// ── 2. Scraping ──
func (p *Pipeline) scrape(ctx context.Context, r *run) Stage {
	r.emit(EventScrapingStarted, ScrapingStarted{RunID: r.id, Attempt: r.attempts + 1, Sites: r.sites, Product: r.target})

	res := p.deps.Scrapers.RunWithProgress(ctx, r.target.SearchQuery, r.sites, r.req.MaxPerSite, func(st models.SiteStatus) {
		r.emit(EventSiteDone, st)
	})
	r.raw = Merge(r.raw, res.Listings, false)
	r.statuses = Merge(r.statuses, res.Statuses, false)
	for k, v := range res.Pages {
		r.pages[k] = v
	}
	return StageExtracting
}

// ── 3. Extracting ──
func (p *Pipeline) extract(ctx context.Context, r *run) Stage {
	listings := r.raw
	if p.deps.Enricher != nil {
		var n int
		listings, n = extractor.Enrich(ctx, listings, p.deps.Enricher, p.deps.Sites)
		if n > 0 {
			r.log.Info("pipeline: enriched listings", "count", n)
		}
	}
	res := extractor.Extract(listings, p.deps.Sites, p.opts.Extract)
	r.offers = res.Offers
	r.nullPrice = res.NullPrice
	p.deps.Metrics.NullPrice(res.NullPrice)

	r.before = make([]*models.NormalizedOffer, len(res.Offers))
	for i, o := range res.Offers {
		c := *o
		r.before[i] = &c
	}
	return StageMatching
}

// ── 4. Matching ──
func (p *Pipeline) match(ctx context.Context, r *run) Stage {
	r.attempts++
	res := p.deps.Matcher.Match(ctx, r.offers, r.target)
	r.matched, r.rejections = res.Matched, res.Rejections
	r.emit(EventMatchingDone, MatchingDone{
		Attempt: r.attempts, Offers: len(r.offers), Matched: len(r.matched), Rejected: len(r.rejections),
	})

	switch {
	case len(r.matched) > 0:
		return StageRanking
	case r.attempts < p.opts.MaxRetries:
		p.deps.Metrics.PipelineRetry()
		return StagePlanning
	default:
		r.errors = append(r.errors, fmt.Sprintf("no offers matched after %d attempts", r.attempts))
		return StageExplaining
	}
}

// ── 5. Ranking ──
func (p *Pipeline) rank(r *run) Stage {
	r.ranked = p.deps.Ranker.Rank(r.matched, r.mode)
	data := RankingDone{Ranked: len(r.ranked)}
	if len(r.ranked) > 0 {
		data.Best = r.ranked[0]
	}
	r.emit(EventRankingDone, data)
	return StageExplaining
}

// ── 6. Explaining ──
func (p *Pipeline) explainStage(ctx context.Context, r *run) Stage {
	if len(r.ranked) == 0 {
		r.explain = noMatchMessage
		return StageDone
	}
	if p.deps.Explainer != nil && ctx.Err() == nil {
		text, err := p.deps.Explainer.Explain(ctx, r.ranked, r.mode, r.req.Query)
		if err == nil && text != "" {
			r.explain = text
			return StageDone
		}
		r.log.Warn("pipeline: explainer failed, using template", "error", err)
	}
	r.explain = templateExplanation(r.ranked, r.mode)
	return StageDone
}

func (r *run) response() *models.CompareResponse {
	resp := &models.CompareResponse{
		Success:              !r.failed,
		RunID:                r.id,
		Query:                r.req.Query,
		Mode:                 r.mode,
		Product:              r.target,
		SelectedMarketplaces: r.sites,
		Statuses:             r.statuses,
		Offers:               r.ranked,
		Explanation:          r.explain,
		Attempts:             r.attempts,
		Errors:               r.errors,
		Counts: models.Counts{
			RawListings:      len(r.raw),
			NormalizedOffers: len(r.offers),
			NullPriceOffers:  r.nullPrice,
			MatchedOffers:    len(r.matched),
			RankedOffers:     len(r.ranked),
		},
		QueryTimeSeconds: math.Round(time.Since(r.start).Seconds()*100) / 100,
	}
	if resp.Offers == nil {
		resp.Offers = []*models.NormalizedOffer{}
	}
	if resp.Statuses == nil {
		resp.Statuses = []models.SiteStatus{}
	}
	if len(r.ranked) > 0 {
		resp.BestDeal = r.ranked[0]
	}
	return resp
}
