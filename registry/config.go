package registry

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Parser names for marketplaces with a specialized parser.
const (
	ParserGeneric   = ""
	ParserAmazon    = "amazon"
	ParserVijaySale = "vijay_sales"
)

// SelectorHint is a primary and optional fallback CSS selector.
// In YAML it may be written as a bare string or as {primary, fallback}.
type SelectorHint struct {
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback"`
}

// UnmarshalYAML accepts either a scalar selector or a mapping.
func (h *SelectorHint) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		h.Primary = strings.TrimSpace(node.Value)
		return nil
	case yaml.MappingNode:
		type plain SelectorHint
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*h = SelectorHint(p)
		return nil
	default:
		return fmt.Errorf("selector hint: unsupported yaml kind at line %d", node.Line)
	}
}

// Empty reports whether neither selector is set.
func (h SelectorHint) Empty() bool { return h.Primary == "" && h.Fallback == "" }

// Selectors groups the per-field hints for a marketplace.
type Selectors struct {
	Container     SelectorHint `yaml:"search_results_container"`
	Title         SelectorHint `yaml:"title"`
	Price         SelectorHint `yaml:"price"`
	OriginalPrice SelectorHint `yaml:"original_price"`
	Rating        SelectorHint `yaml:"rating"`
	ReviewCount   SelectorHint `yaml:"review_count"`
	ListingURL    SelectorHint `yaml:"listing_url"`
	Delivery      SelectorHint `yaml:"delivery"`
	Shipping      SelectorHint `yaml:"shipping"`
	Seller        SelectorHint `yaml:"seller"`
	ReturnPolicy  SelectorHint `yaml:"return_policy"`
	Image         SelectorHint `yaml:"image"`
}

// MarketplaceConfig describes one marketplace. It is immutable once the
// registry has loaded it and is shared by concurrent scrapers.
type MarketplaceConfig struct {
	Key              string    `yaml:"key"`
	Name             string    `yaml:"name"`
	Enabled          *bool     `yaml:"enabled"`
	BaseURL          string    `yaml:"base_url"`
	SearchURLPattern string    `yaml:"search_url_pattern"`
	TrustPrior       *float64  `yaml:"trust_score_base"`
	Selectors        Selectors `yaml:"selectors"`
	BotPhrases       []string  `yaml:"bot_detection_phrases"`
	MaxResults       int       `yaml:"max_results"`
	RequestDelayMs   []int     `yaml:"request_delay_ms"`
	Parser           string    `yaml:"scraper_module"`
	WaitStrategy     string    `yaml:"wait_strategy"`
	NeedsScroll      *bool     `yaml:"needs_scroll"`
	ReadySelector    string    `yaml:"ready_selector"`
	BrandAffinity    []string  `yaml:"brand_affinity"`
}

// IsEnabled reports whether the marketplace takes part in comparisons.
func (m *MarketplaceConfig) IsEnabled() bool { return m.Enabled == nil || *m.Enabled }

// Trust returns the marketplace trust prior in [0,1].
func (m *MarketplaceConfig) Trust() float64 {
	if m.TrustPrior == nil {
		return 0.7
	}
	return *m.TrustPrior
}

// Scroll reports whether the result page needs scrolling for lazy content.
func (m *MarketplaceConfig) Scroll() bool { return m.NeedsScroll == nil || *m.NeedsScroll }

// DelayRange returns the per-request pause bounds.
func (m *MarketplaceConfig) DelayRange() (time.Duration, time.Duration) {
	lo, hi := 700, 1400
	if len(m.RequestDelayMs) == 2 {
		lo, hi = m.RequestDelayMs[0], m.RequestDelayMs[1]
	}
	if hi < lo {
		hi = lo
	}
	return time.Duration(lo) * time.Millisecond, time.Duration(hi) * time.Millisecond
}

// Domain returns the host of the base URL, used to key caches and sessions.
func (m *MarketplaceConfig) Domain() string {
	u, err := url.Parse(m.BaseURL)
	if err != nil || u.Host == "" {
		return m.Key
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// SearchURL fills the search pattern with the query-escaped query.
func (m *MarketplaceConfig) SearchURL(query string) string {
	return strings.ReplaceAll(m.SearchURLPattern, "{query}", url.QueryEscape(query))
}

// AcceptsBrand reports whether brand is in the affinity list.
// An empty list accepts every brand.
func (m *MarketplaceConfig) AcceptsBrand(brand string) bool {
	if len(m.BrandAffinity) == 0 || brand == "" {
		return true
	}
	brand = strings.ToLower(brand)
	for _, b := range m.BrandAffinity {
		if b == brand {
			return true
		}
	}
	return false
}

func (m *MarketplaceConfig) normalize() error {
	if m.Key == "" {
		return fmt.Errorf("missing key")
	}
	if m.BaseURL == "" || m.SearchURLPattern == "" {
		return fmt.Errorf("%s: base_url and search_url_pattern are required", m.Key)
	}
	if !strings.Contains(m.SearchURLPattern, "{query}") {
		return fmt.Errorf("%s: search_url_pattern has no {query} placeholder", m.Key)
	}
	if m.Name == "" {
		m.Name = m.Key
	}
	if m.MaxResults <= 0 {
		m.MaxResults = 5
	}
	if m.TrustPrior != nil && (*m.TrustPrior < 0 || *m.TrustPrior > 1) {
		return fmt.Errorf("%s: trust_score_base out of range", m.Key)
	}
	if m.WaitStrategy == "" {
		m.WaitStrategy = "domcontentloaded"
	}
	for i, b := range m.BrandAffinity {
		m.BrandAffinity[i] = strings.ToLower(strings.TrimSpace(b))
	}
	for i, p := range m.BotPhrases {
		m.BotPhrases[i] = strings.ToLower(p)
	}
	switch m.Parser {
	case ParserGeneric, ParserAmazon, ParserVijaySale:
	default:
		return fmt.Errorf("%s: unknown scraper_module %q", m.Key, m.Parser)
	}
	return nil
}
