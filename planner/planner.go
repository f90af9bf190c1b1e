// Package planner turns a raw query into a target product and picks the
// marketplaces to search.
package planner

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/pricecompare/models"
	"github.com/use-agent/pricecompare/registry"
)

// QueryParser is the optional query-parsing collaborator.
type QueryParser interface {
	ParseQuery(ctx context.Context, query string) (*models.TargetProduct, error)
}

// Sites is the marketplace source.
type Sites interface {
	AllEnabled() []*registry.MarketplaceConfig
	FilterByKeys(keys []string) []*registry.MarketplaceConfig
}

// Parse sources reported in a Plan.
const (
	SourceLLM   = "llm"
	SourceRegex = "regex"
)

// Plan is the planner's output for one attempt.
type Plan struct {
	Target models.TargetProduct
	Sites  []string
	Source string
}

// Planner parses queries and selects marketplaces.
type Planner struct {
	parser QueryParser
	sites  Sites
}

// New creates a Planner. parser may be nil.
func New(parser QueryParser, sites Sites) *Planner {
	return &Planner{parser: parser, sites: sites}
}

// Plan parses query (collaborator first, regex fallback) and selects
// sites honoring allowed and brand affinity.
func (p *Planner) Plan(ctx context.Context, query string, allowed []string) (Plan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Plan{}, models.NewScrapeError(models.ErrCodeInvalidInput, "empty query", nil)
	}

	plan := Plan{Source: SourceRegex}
	if p.parser != nil {
		t, err := p.parser.ParseQuery(ctx, query)
		if err == nil && t != nil {
			plan.Target = *t
			plan.Source = SourceLLM
		} else {
			slog.Debug("planner: query parser unavailable, using regex", "error", err)
		}
	}
	if plan.Source == SourceRegex {
		plan.Target = ParseQuery(query)
	}
	plan.Target.RawQuery = query
	if plan.Target.SearchQuery == "" {
		plan.Target.SearchQuery = plan.Target.BuildSearchQuery()
	}

	plan.Sites = p.SelectSites(plan.Target.Brand, allowed)
	slog.Info("planner: planned", "source", plan.Source, "brand", plan.Target.Brand,
		"model", plan.Target.Model, "storage", plan.Target.Storage,
		"search", plan.Target.SearchQuery, "sites", plan.Sites)
	return plan, nil
}

// SelectSites returns the marketplace keys to search. Allowed keys that
// match nothing fall back to every enabled site; brand affinity then
// drops sites that only sell other brands. The result is only empty when
// no marketplace is enabled.
func (p *Planner) SelectSites(brand string, allowed []string) []string {
	var selected []*registry.MarketplaceConfig
	if len(allowed) > 0 {
		selected = p.sites.FilterByKeys(allowed)
		if len(selected) == 0 {
			slog.Warn("planner: allowed marketplaces matched nothing, using all enabled", "allowed", allowed)
		}
	}
	if len(selected) == 0 {
		selected = p.sites.AllEnabled()
	}

	keys := make([]string, 0, len(selected))
	for _, c := range selected {
		if c.AcceptsBrand(brand) {
			keys = append(keys, c.Key)
		} else {
			slog.Debug("planner: skipping site for brand", "site", c.Key, "brand", brand)
		}
	}
	if len(keys) == 0 {
		for _, c := range selected {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// ── Regex parser ─────────────────────────────────────────────────────────

// brands maps a lower-case query token to the brand's display name.
var brands = map[string]string{
	"apple": "Apple", "samsung": "Samsung", "oneplus": "OnePlus", "xiaomi": "Xiaomi",
	"redmi": "Redmi", "oppo": "Oppo", "vivo": "Vivo", "realme": "Realme",
	"poco": "Poco", "google": "Google", "motorola": "Motorola", "nokia": "Nokia",
	"lg": "LG", "sony": "Sony", "asus": "Asus", "lenovo": "Lenovo", "hp": "HP",
	"dell": "Dell", "acer": "Acer", "iqoo": "iQOO", "nothing": "Nothing",
}

// brandOrder fixes the scan order so parsing is deterministic.
var brandOrder = []string{
	"apple", "samsung", "oneplus", "xiaomi", "redmi", "oppo", "vivo", "realme",
	"poco", "google", "motorola", "nokia", "lg", "sony", "asus", "lenovo",
	"hp", "dell", "acer", "iqoo", "nothing",
}

// impliedBrand infers the maker from a product-line token.
var impliedBrand = []struct{ token, brand string }{
	{"iphone", "Apple"}, {"ipad", "Apple"}, {"macbook", "Apple"}, {"airpods", "Apple"},
	{"galaxy", "Samsung"}, {"pixel", "Google"}, {"moto", "Motorola"},
}

var colors = []string{
	"black", "white", "blue", "red", "green", "gold", "silver", "purple", "pink",
	"yellow", "titanium", "natural", "midnight", "starlight", "graphite",
}

var (
	wordRe     = regexp.MustCompile(`[A-Za-z0-9+]+`)
	storageRe  = regexp.MustCompile(`(?i)\b(\d+)\s*(GB|TB)\b`)
	ramRe      = regexp.MustCompile(`(?i)\b(\d+)\s*GB\s*RAM\b`)
	spacesRe   = regexp.MustCompile(`\s{2,}`)
	variantsRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(models.VariantTokens, "|") + `)\b`)
)

// ParseQuery is the deterministic query parser.
func ParseQuery(query string) models.TargetProduct {
	q := strings.TrimSpace(query)
	t := models.TargetProduct{RawQuery: q, Category: "smartphone"}

	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToLower(q), -1) {
		words[w] = true
	}
	var brandToken string
	for _, b := range brandOrder {
		if words[b] {
			t.Brand, brandToken = brands[b], b
			break
		}
	}
	if t.Brand == "" {
		for _, ib := range impliedBrand {
			if words[ib.token] {
				t.Brand = ib.brand
				break
			}
		}
	}

	rest := q
	if m := ramRe.FindStringSubmatch(rest); m != nil {
		t.RAM = m[1] + "GB"
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	if m := storageRe.FindStringSubmatch(rest); m != nil {
		t.Storage = m[1] + strings.ToUpper(m[2])
	}
	rest = storageRe.ReplaceAllString(rest, " ")
	for _, c := range colors {
		if words[c] {
			t.Color = strings.ToUpper(c[:1]) + c[1:]
			rest = regexp.MustCompile(`(?i)\b`+c+`\b`).ReplaceAllString(rest, " ")
			break
		}
	}
	if brandToken != "" {
		rest = regexp.MustCompile(`(?i)\b`+brandToken+`\b`).ReplaceAllString(rest, " ")
	}
	t.Model = strings.TrimSpace(spacesRe.ReplaceAllString(rest, " "))
	t.Variant = strings.Join(variantsRe.FindAllString(t.Model, -1), " ")
	t.Category = category(t.Model)
	t.SearchQuery = t.BuildSearchQuery()
	return t
}

func category(model string) string {
	m := strings.ToLower(model)
	tokens := map[string]bool{}
	for _, w := range wordRe.FindAllString(m, -1) {
		tokens[w] = true
	}
	switch {
	case strings.Contains(m, "laptop") || strings.Contains(m, "book"):
		return "laptop"
	case tokens["tab"] || tokens["tablet"] || strings.Contains(m, "ipad"):
		return "tablet"
	case tokens["watch"] || tokens["band"]:
		return "wearable"
	case tokens["tv"] || tokens["television"]:
		return "tv"
	default:
		return "smartphone"
	}
}
