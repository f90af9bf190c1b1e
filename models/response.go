package models

// Counts summarises how many items survived each stage.
type Counts struct {
	RawListings      int `json:"raw_listings"`
	NormalizedOffers int `json:"normalized_offers"`
	NullPriceOffers  int `json:"null_price_offers"`
	MatchedOffers    int `json:"matched_offers"`
	RankedOffers     int `json:"ranked_offers"`
}

// CompareResponse is the result of one comparison run.
type CompareResponse struct {
	Success              bool               `json:"success"`
	RunID                string             `json:"run_id"`
	Query                string             `json:"query"`
	Mode                 RankingMode        `json:"mode"`
	Product              TargetProduct      `json:"normalized_product"`
	SelectedMarketplaces []string           `json:"selected_marketplaces"`
	Statuses             []SiteStatus       `json:"site_statuses"`
	Offers               []*NormalizedOffer `json:"ranked_offers"`
	BestDeal             *NormalizedOffer   `json:"best_deal,omitempty"`
	Explanation          string             `json:"explanation"`
	Counts               Counts             `json:"counts"`
	Attempts             int                `json:"attempts"`
	Errors               []string           `json:"errors,omitempty"`
	QueryTimeSeconds     float64            `json:"query_time_seconds"`
	CacheStatus          string             `json:"cache_status,omitempty"`
}

// DebugResponse exposes every intermediate stage of a run.
type DebugResponse struct {
	CompareResponse
	RawListings      []RawListing       `json:"raw_listings"`
	BeforeMatch      []*NormalizedOffer `json:"normalized_before_match"`
	Matched          []*NormalizedOffer `json:"matched_offers"`
	Rejections       []Rejection        `json:"rejections"`
	PageSizes        map[string]int     `json:"page_sizes"`
	SelectorSnapshot map[string]string  `json:"selector_cache"`
}

// ErrorResponse is the body returned with non-2xx API responses.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	Sessions     SessionStats `json:"sessions"`
	Marketplaces int          `json:"marketplaces"`
	LLMEnabled   bool         `json:"llm_enabled"`
	Version      string       `json:"version"`
}

// SessionStats reports the state of the browser session pool.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
	BrowserPID     int `json:"browser_pid"`
}

// MarketplaceInfo is the public view of a registry entry.
type MarketplaceInfo struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Enabled    bool     `json:"enabled"`
	BaseURL    string   `json:"base_url"`
	Parser     string   `json:"parser,omitempty"`
	TrustPrior float64  `json:"trust_prior"`
	Brands     []string `json:"brand_affinity,omitempty"`
}
