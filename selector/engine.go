package selector

import (
	"context"
	"log/slog"

	"github.com/andybalholm/cascadia"

	"github.com/use-agent/pricecompare/cleaner"
)

// Field names used as cache keys and universal-list keys.
const (
	FieldContainer     = "container"
	FieldTitle         = "title"
	FieldPrice         = "price"
	FieldOriginalPrice = "original_price"
	FieldRating        = "rating"
	FieldReviewCount   = "review_count"
	FieldListingURL    = "listing_url"
	FieldDelivery      = "delivery"
	FieldShipping      = "shipping"
	FieldSeller        = "seller"
	FieldReturnPolicy  = "return_policy"
	FieldImage         = "image"
)

// Resolution tiers, reported to the Recorder.
const (
	TierCache     = "cache"
	TierHint      = "hint"
	TierUniversal = "universal"
	TierDiscovery = "discovery"
	TierScan      = "scan"
	TierMiss      = "miss"
)

// Proposal is a set of selectors suggested by a Discoverer.
type Proposal struct {
	Container     string `json:"container"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	OriginalPrice string `json:"original_price"`
	ListingURL    string `json:"listing_url"`
}

// Discoverer proposes selectors from a sample of page HTML.
type Discoverer interface {
	DiscoverSelectors(ctx context.Context, htmlSample, siteKey string) (*Proposal, error)
}

// Recorder receives one call per resolution.
type Recorder interface {
	SelectorResolution(field, tier string)
}

// Engine resolves selectors in order: cache, marketplace hints, universal
// heuristics, then assisted discovery for the container.
type Engine struct {
	cache      *Cache
	discoverer Discoverer
	recorder   Recorder
	universal  map[string][]string
}

// Option configures an Engine.
type Option func(*Engine)

// WithDiscoverer enables the discovery tier.
func WithDiscoverer(d Discoverer) Option { return func(e *Engine) { e.discoverer = d } }

// WithRecorder reports resolutions.
func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

// NewEngine creates an Engine backed by cache.
func NewEngine(cache *Cache, opts ...Option) *Engine {
	if cache == nil {
		cache = NewCache()
	}
	e := &Engine{cache: cache, universal: Universal}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Cache returns the engine's selector cache.
func (e *Engine) Cache() *Cache { return e.cache }

func (e *Engine) record(field, tier string) {
	if e.recorder != nil {
		e.recorder.SelectorResolution(field, tier)
	}
}

// Container finds the repeated product-card selector on the page and
// returns it with the matched nodes. A container must match at least two
// nodes. It returns "", nil when every tier fails.
func (e *Engine) Container(ctx context.Context, root Node, domain, siteKey, primary, fallback string) (string, []Node) {
	if cached, ok := e.cache.Get(domain, FieldContainer); ok {
		if nodes := queryAll(root, cached); len(nodes) >= 2 {
			e.record(FieldContainer, TierCache)
			return cached, nodes
		}
		e.cache.Delete(domain, FieldContainer)
		slog.Debug("selector: cached container went stale", "domain", domain, "selector", cached)
	}

	for _, c := range e.candidates(FieldContainer, "", primary, fallback) {
		if nodes := queryAll(root, c.sel); len(nodes) >= 2 {
			e.cache.Set(domain, FieldContainer, c.sel)
			e.record(FieldContainer, c.tier)
			slog.Debug("selector: container resolved", "domain", domain, "selector", c.sel, "items", len(nodes))
			return c.sel, nodes
		}
	}

	if sel, nodes := e.discover(ctx, root, domain, siteKey); sel != "" {
		e.record(FieldContainer, TierDiscovery)
		return sel, nodes
	}
	e.record(FieldContainer, TierMiss)
	return "", nil
}

func (e *Engine) discover(ctx context.Context, root Node, domain, siteKey string) (string, []Node) {
	if e.discoverer == nil {
		return "", nil
	}
	page, err := root.HTML()
	if err != nil || page == "" {
		return "", nil
	}
	p, err := e.discoverer.DiscoverSelectors(ctx, cleaner.DiscoverySample(page), siteKey)
	if err != nil || p == nil {
		slog.Debug("selector: discovery unavailable", "domain", domain, "error", err)
		return "", nil
	}
	if !validCSS(p.Container) {
		return "", nil
	}
	nodes := queryAll(root, p.Container)
	if len(nodes) < 2 {
		slog.Debug("selector: discovered container rejected", "domain", domain, "selector", p.Container, "items", len(nodes))
		return "", nil
	}

	e.cache.Set(domain, FieldContainer, p.Container)
	for field, sel := range map[string]string{
		FieldTitle:               p.Title,
		FieldPrice:               p.Price,
		FieldOriginalPrice:       p.OriginalPrice,
		FieldListingURL + ":href": p.ListingURL,
	} {
		if validCSS(sel) {
			e.cache.Set(domain, field, sel)
		}
	}
	return p.Container, nodes
}

// Text returns the text of field within card. Price falls back to a
// structural scan of the card's text nodes.
func (e *Engine) Text(card Node, domain, field, primary, fallback string) string {
	cached, _ := e.cache.Get(domain, field)
	for _, c := range e.candidates(field, cached, primary, fallback) {
		n, err := card.Query(c.sel)
		if err != nil || n == nil {
			continue
		}
		text := n.Text()
		if text == "" {
			text = n.TextContent()
		}
		if text == "" {
			continue
		}
		if c.tier == TierUniversal {
			e.cache.Set(domain, field, c.sel)
		}
		e.record(field, c.tier)
		return text
	}

	if field == FieldPrice {
		if t := card.FindPriceText(); t != "" {
			e.record(field, TierScan)
			return t
		}
	}
	e.record(field, TierMiss)
	return ""
}

// Attr returns attribute attr of field within card. Results are cached
// under "field:attr".
func (e *Engine) Attr(card Node, domain, field, attr, primary, fallback string) string {
	key := field + ":" + attr
	cached, _ := e.cache.Get(domain, key)
	for _, c := range e.candidates(field, cached, primary, fallback) {
		n, err := card.Query(c.sel)
		if err != nil || n == nil {
			continue
		}
		v, ok := n.Attr(attr)
		if !ok || v == "" {
			continue
		}
		if c.tier == TierUniversal {
			e.cache.Set(domain, key, c.sel)
		}
		e.record(key, c.tier)
		return v
	}
	e.record(key, TierMiss)
	return ""
}

type candidate struct {
	sel  string
	tier string
}

// candidates lists selectors in resolution order without duplicates.
// Only universal winners are worth caching; hints are already known.
func (e *Engine) candidates(field, cached, primary, fallback string) []candidate {
	seen := map[string]bool{}
	var out []candidate
	add := func(sel, tier string) {
		if sel == "" || seen[sel] {
			return
		}
		seen[sel] = true
		out = append(out, candidate{sel: sel, tier: tier})
	}
	add(cached, TierCache)
	add(primary, TierHint)
	add(fallback, TierHint)
	for _, s := range e.universal[field] {
		add(s, TierUniversal)
	}
	return out
}

func queryAll(root Node, sel string) []Node {
	nodes, err := root.QueryAll(sel)
	if err != nil {
		return nil
	}
	return nodes
}

func validCSS(sel string) bool {
	if sel == "" {
		return false
	}
	_, err := cascadia.ParseGroup(sel)
	return err == nil
}
